package scraper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// Config controls a crawl.
type Config struct {
	StartURL    string
	OutputDir   string
	MaxArticles int
	// Sections are path substrings a link must contain to be followed,
	// e.g. "/start/", "/tutorials/", "/guide/".
	Sections  []string
	Delay     time.Duration
	UserAgent string
	// MinResponseBytes guards against truncated or interstitial pages;
	// shorter responses are treated as fetch failures.
	MinResponseBytes int
}

// DefaultSections follow the tutorial and guide areas of a support site.
var DefaultSections = []string{"/start/", "/tutorials/", "/guide/"}

const (
	defaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/94.0.4606.81 Safari/537.36"
	defaultMinResponseBytes = 1000
)

// Scraper crawls one documentation site. Collectors run synchronously, so
// callbacks never touch shared state concurrently.
type Scraper struct {
	cfg         Config
	base        *url.URL
	collector   *colly.Collector
	images      *colly.Collector
	articles    []Article
	articlesDir string
	imagesDir   string
	logger      *slog.Logger
}

// New creates a scraper rooted at cfg.StartURL. The output directory is
// created (and its stale top-level files removed) up front.
func New(cfg Config, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL %q: %w", cfg.StartURL, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("start URL %q has no host", cfg.StartURL)
	}
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = 30
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = DefaultSections
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MinResponseBytes == 0 {
		cfg.MinResponseBytes = defaultMinResponseBytes
	}

	s := &Scraper{
		cfg:         cfg,
		base:        base,
		articlesDir: filepath.Join(cfg.OutputDir, "articles"),
		imagesDir:   filepath.Join(cfg.OutputDir, "images"),
		logger:      logger,
	}

	if err := s.prepareOutputDirs(); err != nil {
		return nil, err
	}

	// AllowedDomains matches against the port-stripped hostname.
	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.UserAgent(cfg.UserAgent),
	)
	if cfg.Delay > 0 {
		_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: cfg.Delay})
	}
	c.OnRequest(func(r *colly.Request) {
		if len(s.articles) >= s.cfg.MaxArticles {
			r.Abort()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		s.logger.Error("fetch failed", "url", r.Request.URL.String(), "error", err)
	})
	c.OnHTML("html", s.processPage)
	c.OnHTML("a[href]", s.followLink)
	s.collector = c

	// Images may live on a CDN outside the crawl domain, so they get their
	// own unrestricted collector.
	ic := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	ic.OnResponse(func(r *colly.Response) {
		dest := r.Ctx.Get("local_path")
		if dest == "" {
			return
		}
		if err := r.Save(dest); err != nil {
			r.Ctx.Put("save_error", err.Error())
		}
	})
	s.images = ic

	return s, nil
}

func (s *Scraper) prepareOutputDirs() error {
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	// Re-runs replace prior output: drop stale top-level files.
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			_ = os.Remove(filepath.Join(s.cfg.OutputDir, entry.Name()))
		}
	}
	for _, dir := range []string{s.articlesDir, s.imagesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Run crawls from the start URL until the article cap is reached or no
// in-scope links remain, then writes the article and image indexes, the
// combined dump, and the HTML viewer.
func (s *Scraper) Run() ([]Article, error) {
	s.logger.Info("starting crawl", "start", s.cfg.StartURL, "max_articles", s.cfg.MaxArticles)

	if err := s.collector.Visit(s.cfg.StartURL); err != nil {
		// A failed start page leaves nothing to index.
		return nil, fmt.Errorf("visit start URL: %w", err)
	}
	s.collector.Wait()

	if err := s.writeIndexes(); err != nil {
		return nil, err
	}
	if err := s.writeViewer(); err != nil {
		s.logger.Warn("failed to write HTML viewer", "error", err)
	}

	s.logger.Info("crawl complete", "articles", len(s.articles))
	return s.articles, nil
}

// processPage extracts one article from a fetched page.
func (s *Scraper) processPage(e *colly.HTMLElement) {
	if len(s.articles) >= s.cfg.MaxArticles {
		return
	}
	pageURL := e.Request.URL.String()
	if len(e.Response.Body) < s.cfg.MinResponseBytes {
		s.logger.Warn("suspiciously short response, skipping", "url", pageURL, "bytes", len(e.Response.Body))
		return
	}

	title := strings.TrimSpace(e.DOM.Find("h1").First().Text())
	if title == "" {
		title = "Untitled"
		s.logger.Warn("no title found", "url", pageURL)
	}

	articleSel := e.DOM.Find("article").First()
	if articleSel.Length() == 0 {
		s.logger.Warn("no article content found", "url", pageURL)
		return
	}

	articleID := contentHash(pageURL)
	var images []ImageRef
	markers := make(map[string]MarkerInfo)

	articleSel.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		alt, _ := img.Attr("alt")

		info, err := s.saveImage(e.Request.AbsoluteURL(src), articleID, alt)
		if err != nil {
			// The article is still saved, just without this image.
			s.logger.Error("image download failed", "url", src, "error", err)
			img.Remove()
			return
		}

		markerID := uuid.NewString()[:8]
		marker := fmt.Sprintf("[[IMAGE:%s|%s]]", info.LocalPath, info.Title)
		img.ReplaceWithHtml(fmt.Sprintf(
			`<span class="image-placeholder" data-marker=%q>%s</span>`,
			markerID, html.EscapeString(marker),
		))
		markers[markerID] = MarkerInfo{Marker: marker, Image: info}
		images = append(images, info)
	})

	contentHTML, err := goquery.OuterHtml(articleSel)
	if err != nil {
		s.logger.Error("failed to serialize article HTML", "url", pageURL, "error", err)
		return
	}

	article := Article{
		ID:          articleID,
		URL:         pageURL,
		Title:       title,
		ContentHTML: contentHTML,
		ContentText: textWithNewlines(articleSel),
		Images:      images,
		Markers:     markers,
	}

	if err := s.writeArticle(article); err != nil {
		s.logger.Error("failed to save article", "url", pageURL, "error", err)
		return
	}
	s.articles = append(s.articles, article)
	s.logger.Info("saved article", "title", title, "images", len(images))
}

// followLink visits in-scope documentation links.
func (s *Scraper) followLink(e *colly.HTMLElement) {
	href := e.Attr("href")
	for _, ext := range []string{".jpg", ".png", ".pdf", ".zip"} {
		if strings.HasSuffix(href, ext) {
			return
		}
	}

	abs := e.Request.AbsoluteURL(href)
	if abs == "" {
		return
	}
	link, err := url.Parse(abs)
	if err != nil || link.Host != s.base.Host {
		return
	}
	// Skip non-English locale mirrors (two-letter leading path segment).
	segments := strings.Split(strings.Trim(link.Path, "/"), "/")
	if len(segments) > 0 && len(segments[0]) == 2 && segments[0] != "en" {
		return
	}
	if !s.inSections(link.Path) {
		return
	}
	// AlreadyVisited and cap aborts are expected here.
	_ = e.Request.Visit(abs)
}

func (s *Scraper) inSections(path string) bool {
	for _, section := range s.cfg.Sections {
		if strings.Contains(path, section) {
			return true
		}
	}
	return false
}

func (s *Scraper) writeArticle(article Article) error {
	data, err := json.MarshalIndent(article, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("article_%s.json", article.ID)
	return os.WriteFile(filepath.Join(s.articlesDir, name), data, 0o644)
}

func (s *Scraper) writeIndexes() error {
	articleIndex := make([]ArticleIndexEntry, 0, len(s.articles))
	for _, a := range s.articles {
		imageIDs := make([]string, 0, len(a.Images))
		for _, img := range a.Images {
			imageIDs = append(imageIDs, img.ID)
		}
		articleIndex = append(articleIndex, ArticleIndexEntry{
			ID:         a.ID,
			URL:        a.URL,
			Title:      a.Title,
			ImageCount: len(a.Images),
			Images:     imageIDs,
		})
	}
	if err := s.writeJSON("article_index.json", articleIndex); err != nil {
		return err
	}

	seen := make(map[string]*ImageIndexEntry)
	var order []string
	for _, a := range s.articles {
		for _, img := range a.Images {
			entry, ok := seen[img.ID]
			if !ok {
				entry = &ImageIndexEntry{
					ID:       img.ID,
					Filename: img.Filename,
					Path:     img.LocalPath,
					Title:    img.Title,
				}
				seen[img.ID] = entry
				order = append(order, img.ID)
			}
			referenced := false
			for _, ref := range entry.Articles {
				if ref.ID == a.ID {
					referenced = true
					break
				}
			}
			if !referenced {
				entry.Articles = append(entry.Articles, ImageArticleEntry{
					ID:    a.ID,
					Title: a.Title,
					URL:   a.URL,
				})
			}
		}
	}
	imageIndex := make([]ImageIndexEntry, 0, len(order))
	for _, id := range order {
		imageIndex = append(imageIndex, *seen[id])
	}
	if err := s.writeJSON("image_index.json", map[string]any{"images": imageIndex}); err != nil {
		return err
	}

	return s.writeJSON("all_data.json", map[string]any{"articles": s.articles})
}

func (s *Scraper) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.cfg.OutputDir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// textWithNewlines extracts the text content of a selection with each text
// node trimmed and separated by a newline, mirroring how the article text
// was originally captured.
func textWithNewlines(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range sel.Nodes {
		walk(node)
	}
	return strings.Join(parts, "\n")
}
