// Package seed 将内置的 YAML 示例内容写入租户，重复执行时跳过已存在的条目。
package seed

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures
var fixturesFS embed.FS

// Fixtures 是一个或多个 YAML 文件合并后的内容。
type Fixtures struct {
	Settings    map[string]string  `yaml:"settings"`
	Pages       []PageFixture      `yaml:"pages"`
	Services    []ServiceFixture   `yaml:"services"`
	CaseStudies []CaseStudyFixture `yaml:"caseStudies"`
	Posts       []PostFixture      `yaml:"posts"`
}

type BlockFixture struct {
	Type string         `yaml:"type"`
	Data map[string]any `yaml:"data"`
}

type PageFixture struct {
	Slug        string         `yaml:"slug"`
	Locale      string         `yaml:"locale"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Status      string         `yaml:"status"`
	Blocks      []BlockFixture `yaml:"blocks"`
}

type ServiceFixture struct {
	Slug      string `yaml:"slug"`
	Locale    string `yaml:"locale"`
	Title     string `yaml:"title"`
	Summary   string `yaml:"summary"`
	Icon      string `yaml:"icon"`
	SortOrder int    `yaml:"sortOrder"`
	PageSlug  string `yaml:"pageSlug"`
}

type CaseStudyFixture struct {
	Slug     string          `yaml:"slug"`
	Locale   string          `yaml:"locale"`
	Title    string          `yaml:"title"`
	Client   string          `yaml:"client"`
	Industry string          `yaml:"industry"`
	Summary  string          `yaml:"summary"`
	Metrics  []db.CaseMetric `yaml:"metrics"`
	PageSlug string          `yaml:"pageSlug"`
}

type PostFixture struct {
	Slug    string   `yaml:"slug"`
	Locale  string   `yaml:"locale"`
	Title   string   `yaml:"title"`
	Excerpt string   `yaml:"excerpt"`
	Content string   `yaml:"content"`
	Tags    []string `yaml:"tags"`
}

// Result 统计一次执行中新建与跳过的条目数。
type Result struct {
	Created  int
	Skipped  int
	Settings int
}

// Load 读取 fsys 根目录下全部 .yaml 文件并按文件名顺序合并。
func Load(fsys fs.FS) (Fixtures, error) {
	var merged Fixtures
	merged.Settings = make(map[string]string)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return Fixtures{}, eris.Wrap(err, "read fixtures directory")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return Fixtures{}, eris.Wrapf(err, "read fixture %s", name)
		}
		var part Fixtures
		if err := yaml.Unmarshal(raw, &part); err != nil {
			return Fixtures{}, eris.Wrapf(err, "parse fixture %s", name)
		}
		for key, value := range part.Settings {
			merged.Settings[key] = value
		}
		merged.Pages = append(merged.Pages, part.Pages...)
		merged.Services = append(merged.Services, part.Services...)
		merged.CaseStudies = append(merged.CaseStudies, part.CaseStudies...)
		merged.Posts = append(merged.Posts, part.Posts...)
	}
	return merged, nil
}

// Default 返回编译进二进制的示例内容。
func Default() (Fixtures, error) {
	sub, err := fs.Sub(fixturesFS, "fixtures")
	if err != nil {
		return Fixtures{}, eris.Wrap(err, "open embedded fixtures")
	}
	return Load(sub)
}

// Seeder 通过业务服务写入示例内容，复用其校验与清洗逻辑。
type Seeder struct {
	logger      *logrus.Logger
	pages       *service.PageService
	posts       *service.BlogPostService
	offerings   *service.OfferingService
	caseStudies *service.CaseStudyService
	settings    *service.SiteSettingService
}

// New 构造 Seeder，logger 为空时使用 logrus 默认实例。
func New(gdb *gorm.DB, logger *logrus.Logger) *Seeder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Seeder{
		logger:      logger,
		pages:       service.NewPageService(gdb),
		posts:       service.NewBlogPostService(gdb),
		offerings:   service.NewOfferingService(gdb),
		caseStudies: service.NewCaseStudyService(gdb),
		settings:    service.NewSiteSettingService(gdb),
	}
}

// Run 把 fixtures 写入租户。页面先于服务和案例写入，以便后者按 slug 关联页面。
func (s *Seeder) Run(tenantID uint, fixtures Fixtures) (Result, error) {
	var result Result
	log := s.logger.WithField("tenant_id", tenantID)

	count, err := s.seedSettings(tenantID, fixtures.Settings)
	if err != nil {
		return result, err
	}
	result.Settings = count

	for _, fixture := range fixtures.Pages {
		input, err := pageInput(fixture)
		if err != nil {
			return result, err
		}
		_, err = s.pages.Create(tenantID, input)
		if !s.track(&result, err, log, "page", fixture.Locale, fixture.Slug) {
			return result, eris.Wrapf(err, "seed page %s/%s", fixture.Locale, fixture.Slug)
		}
	}

	for _, fixture := range fixtures.Services {
		pageID, err := s.pageID(tenantID, fixture.Locale, fixture.PageSlug)
		if err != nil {
			return result, err
		}
		_, err = s.offerings.Create(tenantID, service.OfferingInput{
			Slug:      fixture.Slug,
			Locale:    fixture.Locale,
			Title:     fixture.Title,
			Summary:   strings.TrimSpace(fixture.Summary),
			Icon:      fixture.Icon,
			SortOrder: fixture.SortOrder,
			PageID:    pageID,
			Status:    string(db.StatusPublished),
		})
		if !s.track(&result, err, log, "service", fixture.Locale, fixture.Slug) {
			return result, eris.Wrapf(err, "seed service %s/%s", fixture.Locale, fixture.Slug)
		}
	}

	for _, fixture := range fixtures.CaseStudies {
		pageID, err := s.pageID(tenantID, fixture.Locale, fixture.PageSlug)
		if err != nil {
			return result, err
		}
		_, err = s.caseStudies.Create(tenantID, service.CaseStudyInput{
			Slug:     fixture.Slug,
			Locale:   fixture.Locale,
			Title:    fixture.Title,
			Client:   fixture.Client,
			Industry: fixture.Industry,
			Summary:  strings.TrimSpace(fixture.Summary),
			Metrics:  fixture.Metrics,
			PageID:   pageID,
			Status:   string(db.StatusPublished),
		})
		if !s.track(&result, err, log, "case study", fixture.Locale, fixture.Slug) {
			return result, eris.Wrapf(err, "seed case study %s/%s", fixture.Locale, fixture.Slug)
		}
	}

	for _, fixture := range fixtures.Posts {
		_, err := s.posts.Create(tenantID, service.BlogPostInput{
			Slug:    fixture.Slug,
			Locale:  fixture.Locale,
			Title:   fixture.Title,
			Excerpt: strings.TrimSpace(fixture.Excerpt),
			Content: strings.TrimSpace(fixture.Content),
			Tags:    fixture.Tags,
			Status:  string(db.StatusPublished),
		})
		if !s.track(&result, err, log, "blog post", fixture.Locale, fixture.Slug) {
			return result, eris.Wrapf(err, "seed blog post %s/%s", fixture.Locale, fixture.Slug)
		}
	}

	log.WithFields(logrus.Fields{
		"created":  result.Created,
		"skipped":  result.Skipped,
		"settings": result.Settings,
	}).Info("seed finished")
	return result, nil
}

// track 记录一次写入结果；slug 冲突视为已存在并跳过，其它错误返回 false。
func (s *Seeder) track(result *Result, err error, log *logrus.Entry, kind, locale, slug string) bool {
	switch {
	case err == nil:
		result.Created++
		log.WithFields(logrus.Fields{"kind": kind, "locale": locale, "slug": slug}).Debug("seeded")
		return true
	case errors.Is(err, service.ErrSlugTaken):
		result.Skipped++
		return true
	default:
		return false
	}
}

// seedSettings 只写入尚未配置的键，不覆盖后台修改过的值。
func (s *Seeder) seedSettings(tenantID uint, values map[string]string) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	existing, err := s.settings.Raw(tenantID)
	if err != nil {
		return 0, err
	}
	missing := make(map[string]string)
	for key, value := range values {
		if _, ok := existing[key]; !ok {
			missing[key] = value
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if _, err := s.settings.Update(tenantID, missing); err != nil {
		return 0, eris.Wrap(err, "seed settings")
	}
	return len(missing), nil
}

func (s *Seeder) pageID(tenantID uint, locale, slug string) (*uint, error) {
	if slug == "" {
		return nil, nil
	}
	page, err := s.pages.GetBySlug(tenantID, locale, slug)
	if errors.Is(err, service.ErrPageNotFound) {
		return nil, eris.Errorf("fixture references unknown page %s/%s", locale, slug)
	}
	if err != nil {
		return nil, err
	}
	return &page.ID, nil
}

func pageInput(fixture PageFixture) (service.PageInput, error) {
	status := fixture.Status
	if status == "" {
		status = string(db.StatusPublished)
	}
	input := service.PageInput{
		Slug:        fixture.Slug,
		Locale:      fixture.Locale,
		Title:       fixture.Title,
		Description: fixture.Description,
		Status:      status,
		Blocks:      make([]blocks.Input, 0, len(fixture.Blocks)),
	}
	for i, block := range fixture.Blocks {
		data, err := json.Marshal(block.Data)
		if err != nil {
			return service.PageInput{}, eris.Wrapf(err, "encode block %d of page %s/%s", i, fixture.Locale, fixture.Slug)
		}
		input.Blocks = append(input.Blocks, blocks.Input{Type: block.Type, Data: data})
	}
	return input, nil
}
