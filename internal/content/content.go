// Package content holds the quiz definitions shipped with the binary.
package content

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	"scenario-quiz-service/internal/domain"
)

//go:embed quizzes/*.yaml
var quizFiles embed.FS

// Loader serves the embedded quiz definitions.
type Loader struct {
	fsys fs.FS
	once sync.Once
	defs map[string]domain.QuizDefinition
	err  error
}

// NewLoader returns a loader over the embedded quizzes.
func NewLoader() *Loader {
	return NewLoaderFS(quizFiles)
}

// NewLoaderFS reads definitions from quizzes/*.yaml in fsys.
func NewLoaderFS(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

func (l *Loader) load() {
	l.once.Do(func() {
		l.defs = make(map[string]domain.QuizDefinition)
		paths, err := fs.Glob(l.fsys, "quizzes/*.yaml")
		if err != nil {
			l.err = err
			return
		}
		for _, p := range paths {
			data, err := fs.ReadFile(l.fsys, p)
			if err != nil {
				l.err = fmt.Errorf("read %s: %w", p, err)
				return
			}
			var def domain.QuizDefinition
			if err := yaml.Unmarshal(data, &def); err != nil {
				l.err = fmt.Errorf("parse %s: %w", p, err)
				return
			}
			if def.Name == "" {
				def.Name = strings.TrimSuffix(path.Base(p), path.Ext(p))
			}
			def = def.WithDefaults()
			if err := def.Validate(); err != nil {
				l.err = fmt.Errorf("%s: %w", p, err)
				return
			}
			l.defs[def.Name] = def
		}
	})
}

func (l *Loader) LoadDefinition(_ context.Context, quizName string) (domain.QuizDefinition, error) {
	l.load()
	if l.err != nil {
		return domain.QuizDefinition{}, l.err
	}
	def, ok := l.defs[quizName]
	if !ok {
		return domain.QuizDefinition{}, domain.ErrQuizNotFound
	}
	return def, nil
}

func (l *Loader) ListQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	defs, err := l.All()
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, domain.QuizSummary{Name: def.Name, Title: def.Title})
	}
	return out, nil
}

// All returns every definition ordered by name.
func (l *Loader) All() ([]domain.QuizDefinition, error) {
	l.load()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]domain.QuizDefinition, 0, len(l.defs))
	for _, def := range l.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
