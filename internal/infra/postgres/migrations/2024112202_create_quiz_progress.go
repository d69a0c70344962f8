package migrations

import _ "embed"

//go:embed 0002_create_quiz_progress.sql
var createQuizProgressSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createQuizProgressSQL),
		execSQL(`DROP TABLE IF EXISTS quiz_settings, quiz_scores, quiz_progress`),
	)
}
