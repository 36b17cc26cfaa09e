package export

import (
	"bytes"
	"html/template"
	"time"
)

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(summaryTemplateHTML))

// TemplateData holds data for summary template rendering
type TemplateData struct {
	Title       string
	Author      string
	Date        time.Time
	Status      string
	ContentHTML template.HTML
}

// RenderSummaryHTML renders the summary template with provided data
func RenderSummaryHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const summaryTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: "Helvetica Neue", Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1f2933; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; }
    th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; }
    code { background: #f5f5f5; padding: 0 0.2rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Author}}{{if not .Date.IsZero}} | {{formatDate .Date "2006-01-02"}}{{end}}{{if .Status}} | {{.Status}}{{end}}</div>
  <div class="content">{{.ContentHTML}}</div>
</body>
</html>`
