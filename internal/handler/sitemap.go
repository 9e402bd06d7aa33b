package handler

import (
	"encoding/xml"
	"net/http"
	"sort"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/gin-gonic/gin"
)

const sitemapPerPage = 100

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	XHTML   string       `xml:"xmlns:xhtml,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string             `xml:"loc"`
	LastMod    string             `xml:"lastmod,omitempty"`
	Alternates []sitemapXHTMLLink `xml:"xhtml:link"`
}

type sitemapXHTMLLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// sitemapEntry 是同一内容在某个语言下的版本，group 相同的条目互为 hreflang。
type sitemapEntry struct {
	group   string
	locale  string
	path    string
	updated time.Time
}

// Sitemap 输出所有公开页面、文章与案例，并为多语言版本附带 hreflang。
func (a *API) Sitemap(c *gin.Context) {
	tenant := currentTenant(c)
	var entries []sitemapEntry

	pages, err := a.pages.ListVisible(tenant.ID, "")
	if err != nil {
		a.respondServiceError(c, err, "failed to build sitemap")
		return
	}
	for _, page := range pages {
		entries = append(entries, sitemapEntry{group: "page:" + page.Slug, locale: page.Locale, path: pagePath(page.Locale, page.Slug), updated: page.UpdatedAt})
	}

	for _, code := range locale.Supported {
		for pageNum := 1; ; pageNum++ {
			result, err := a.posts.ListVisible(tenant.ID, code, pageNum, sitemapPerPage)
			if err != nil {
				a.respondServiceError(c, err, "failed to build sitemap")
				return
			}
			for _, post := range result.Posts {
				entries = append(entries, sitemapEntry{group: "post:" + post.Slug, locale: post.Locale, path: "/" + post.Locale + "/blog/" + post.Slug, updated: post.UpdatedAt})
			}
			if pageNum >= result.TotalPages {
				break
			}
		}

		studies, err := a.caseStudies.ListVisible(tenant.ID, code)
		if err != nil {
			a.respondServiceError(c, err, "failed to build sitemap")
			return
		}
		for _, study := range studies {
			entries = append(entries, sitemapEntry{group: "case:" + study.Slug, locale: study.Locale, path: "/" + study.Locale + "/case-studies/" + study.Slug, updated: study.UpdatedAt})
		}
	}

	groups := make(map[string][]sitemapEntry)
	for _, entry := range entries {
		groups[entry.group] = append(groups[entry.group], entry)
	}

	set := sitemapURLSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTML: "http://www.w3.org/1999/xhtml",
	}
	for _, entry := range entries {
		item := sitemapURL{Loc: a.absoluteURL(c, entry.path)}
		if !entry.updated.IsZero() {
			item.LastMod = entry.updated.UTC().Format("2006-01-02")
		}
		if siblings := groups[entry.group]; len(siblings) > 1 {
			for _, sibling := range siblings {
				item.Alternates = append(item.Alternates, sitemapXHTMLLink{
					Rel:      "alternate",
					Hreflang: sibling.locale,
					Href:     a.absoluteURL(c, sibling.path),
				})
			}
		}
		set.URLs = append(set.URLs, item)
	}
	sort.SliceStable(set.URLs, func(i, j int) bool { return set.URLs[i].Loc < set.URLs[j].Loc })

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		a.respondServiceError(c, err, "failed to build sitemap")
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), body...))
}
