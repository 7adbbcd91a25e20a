package scraper

import (
	"html/template"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// viewerTemplate renders a static browser for the scraped corpus. It is a
// convenience artifact only; nothing downstream reads it.
var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Documentation Browser</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; padding: 20px; max-width: 1200px; margin: 0 auto; }
h1 { color: #1969ff; }
.article-list { display: grid; grid-template-columns: repeat(auto-fill, minmax(300px, 1fr)); gap: 20px; }
.article-card { border: 1px solid #ddd; border-radius: 8px; padding: 15px; }
.article-title { font-weight: bold; margin-bottom: 10px; color: #1969ff; }
.article-image { width: 80px; height: 80px; object-fit: cover; border-radius: 4px; }
.view-btn { display: inline-block; margin-top: 10px; background: #1969ff; color: white; padding: 5px 10px; border-radius: 4px; text-decoration: none; }
.article-detail { border: 1px solid #ddd; padding: 20px; border-radius: 8px; margin-top: 20px; }
.preview-text { height: 100px; overflow: hidden; margin-top: 10px; }
</style>
</head>
<body>
<h1>Documentation Browser</h1>
<p>Scraped articles and their images.</p>
<div class="article-list">
{{range .}}
  <div class="article-card">
    <div class="article-title">{{.Title}}</div>
    <div>Images: {{len .Images}}</div>
    <div class="preview-text">{{.Preview}}</div>
    <div>
      {{range .Thumbnails}}<img src="{{.LocalPath}}" alt="{{.Title}}" class="article-image">{{end}}
    </div>
    <a href="articles/article_{{.ID}}.json" class="view-btn">View JSON</a>
    <a href="#" onclick="viewArticle('{{.ID}}'); return false;" class="view-btn">View Article</a>
  </div>
{{end}}
</div>
<div id="article-detail" class="article-detail" style="display:none;">
  <h2 id="detail-title"></h2>
  <div id="detail-content"></div>
  <button onclick="hideArticle()" class="view-btn">Back to List</button>
</div>
<script>
function viewArticle(id) {
  fetch('articles/article_' + id + '.json')
    .then(function (response) { return response.json(); })
    .then(function (article) {
      document.getElementById('detail-title').textContent = article.title;
      var content = article.content_text.replace(
        /\[\[IMAGE:([^|]+)\|([^\]]+)\]\]/g,
        function (m, path, title) {
          return '<div style="text-align:center;margin:15px 0;"><img src="' + path +
            '" alt="' + title + '" style="max-width:100%;"><div style="font-style:italic;">' +
            title + '</div></div>';
        });
      document.getElementById('detail-content').innerHTML = content;
      document.querySelector('.article-list').style.display = 'none';
      document.getElementById('article-detail').style.display = 'block';
    });
}
function hideArticle() {
  document.querySelector('.article-list').style.display = 'grid';
  document.getElementById('article-detail').style.display = 'none';
}
</script>
</body>
</html>
`))

type viewerCard struct {
	ID         string
	Title      string
	Images     []ImageRef
	Thumbnails []ImageRef
	Preview    string
}

// writeViewer emits index.html next to the index files.
func (s *Scraper) writeViewer() error {
	cards := make([]viewerCard, 0, len(s.articles))
	for _, a := range s.articles {
		preview := a.ContentText
		if len(preview) > 500 {
			cut := 500
			for cut > 0 && !utf8.RuneStart(preview[cut]) {
				cut--
			}
			preview = preview[:cut]
		}
		thumbnails := a.Images
		if len(thumbnails) > 4 {
			thumbnails = thumbnails[:4]
		}
		cards = append(cards, viewerCard{
			ID:         a.ID,
			Title:      a.Title,
			Images:     a.Images,
			Thumbnails: thumbnails,
			Preview:    preview,
		})
	}

	f, err := os.Create(filepath.Join(s.cfg.OutputDir, "index.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	return viewerTemplate.Execute(f, cards)
}
