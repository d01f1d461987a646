package services

import (
	"bytes"
	_ "embed"
	"html/template"
	"sync"
)

//go:embed assets/index.html
var indexTmpl string

type PageParams struct {
	DefaultPrompt string
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (g *Templator) Template(params PageParams) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("index").Parse(indexTmpl))
	})

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
