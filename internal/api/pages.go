package api

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/catalog"
	"github.com/starford/bucketpress/internal/docservice"
	"github.com/starford/bucketpress/internal/pathkey"
	"github.com/starford/bucketpress/internal/vdir"
)

const layout = `{{define "top"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · Bucketpress</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;color:#222}
header{display:flex;gap:1rem;align-items:center;padding:.6rem 1rem;border-bottom:1px solid #ddd}
nav a{margin-right:.3rem}
.columns{display:flex;overflow-x:auto;height:calc(100vh - 3rem)}
.column{min-width:14rem;border-right:1px solid #eee;padding:.5rem;overflow-y:auto}
.column a{display:block;padding:.15rem .3rem;text-decoration:none;color:inherit}
.column a.active{background:#e8f0fe}
article{max-width:46rem;margin:1.5rem auto;padding:0 1rem}
.meta{color:#666;font-size:.9rem}
img{max-width:100%}
#publish-state{margin-left:auto;color:#666}
</style>
</head>
<body>
<header>
<a href="/">Bucketpress</a>
<nav>{{range .Crumbs}}/ <a href="/?path={{.Path}}">{{.Name}}</a> {{end}}</nav>
<span id="publish-state"></span>
<button id="publish" type="button">Publish</button>
</header>
{{end}}
{{define "bottom"}}<script>
const state = document.getElementById('publish-state');
document.getElementById('publish').onclick = async () => {
  const res = await fetch('/api/publish', {method: 'POST'});
  state.textContent = (await res.json()).message || '';
};
const events = new EventSource('/api/events');
events.addEventListener('publish.state', e => { state.textContent = JSON.parse(e.data).message || ''; });
events.addEventListener('tree.updated', () => { if (!document.querySelector('article')) location.reload(); });
</script>
</body>
</html>{{end}}`

const browserPage = `{{template "top" .}}
<div class="columns">
{{if .View.Path}}<div class="column"><a href="/?path={{.Up.Path}}">..</a></div>
{{end}}{{range .View.Columns}}{{$dir := .Path}}<div class="column">
{{range .Folders}}<a href="/?path={{join $dir .Name}}" class="{{if within $.View.Path (join $dir .Name)}}active{{end}}">{{.Name}}/</a>
{{end}}{{range .Files}}<a href="{{fileLink $dir .Name}}" class="{{if and (eq $dir $.Session.Path) (eq .Name $.Session.Selected)}}active{{end}}">{{.Name}}</a>
{{end}}</div>
{{end}}</div>
{{template "bottom" .}}`

const documentPage = `{{template "top" .}}
<article>
<h1>{{.Title}}</h1>
{{with .Doc.Frontmatter}}<p class="meta">{{with .Author}}{{.}} {{end}}{{with .Date}}· {{.}} {{end}}{{with .ReadingTime}}· {{.}}{{end}}</p>
{{with .Description}}<p><em>{{.}}</em></p>{{end}}{{end}}
{{with .Doc.Tags}}<p class="meta">{{range .}}#{{.}} {{end}}</p>{{end}}
{{.HTML}}
</article>
{{template "bottom" .}}`

// Pages renders the HTML browser and document preview.
type Pages struct {
	svc     *docservice.Service
	browser *template.Template
	doc     *template.Template
}

// NewPages parses the page templates.
func NewPages(svc *docservice.Service) *Pages {
	p := &Pages{svc: svc}
	funcs := template.FuncMap{
		"join":   pathkey.Join,
		"within": pathkey.IsWithin,
		"fileLink": func(dir, name string) string {
			key := pathkey.Join(dir, name)
			if catalog.IsDocument(key) {
				return "/view/" + key
			}
			if u, ok := svc.Engine().Store().PublicURL(key); ok {
				return u
			}
			return "/storage/v1/object/public/" + key
		},
	}
	base := template.Must(template.New("layout").Funcs(funcs).Parse(layout))
	p.browser = template.Must(template.Must(base.Clone()).Parse(browserPage))
	p.doc = template.Must(template.Must(base.Clone()).Parse(documentPage))
	return p
}

type browserData struct {
	Title   string
	Crumbs  []pathkey.Crumb
	Session vdir.Session
	Up      vdir.Session
	View    vdir.View
}

type documentData struct {
	Title  string
	Crumbs []pathkey.Crumb
	Doc    *docservice.DocumentDetail
	HTML   template.HTML
}

// Browser handles GET /?path=&select=. The optional select names a file of
// path to highlight.
func (p *Pages) Browser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session := vdir.Session{Path: q.Get("path")}
	if name := q.Get("select"); name != "" {
		var err error
		if session, err = session.Select(name); err != nil {
			p.fail(w, r, err)
			return
		}
	}
	view, err := p.svc.View(r.Context(), session.Path)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	title := "Files"
	if session.Path != "" {
		title = pathkey.Base(session.Path)
	}
	p.render(w, p.browser, browserData{
		Title:   title,
		Crumbs:  session.Crumbs(),
		Session: session,
		Up:      session.Up(),
		View:    view,
	})
}

// Document handles GET /view/*.
func (p *Pages) Document(w http.ResponseWriter, r *http.Request) {
	key := wildcardPath(r)
	doc, err := p.svc.Open(r.Context(), key)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	title := doc.Title
	if title == "" {
		title = pathkey.Base(key)
	}
	p.render(w, p.doc, documentData{
		Title:  title,
		Crumbs: pathkey.Breadcrumbs(pathkey.Parent(key)),
		Doc:    doc,
		HTML:   template.HTML(doc.HTML), //nolint:gosec // goldmark output with raw HTML disabled
	})
}

func (p *Pages) render(w http.ResponseWriter, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		slog.Error("render page failed", slog.String("error", err.Error()))
	}
}

func (p *Pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		slog.Error("page failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	http.Error(w, apperr.Message(err, "internal error"), statusOf(kind))
}
