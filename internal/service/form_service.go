package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/notify"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrSubmissionNotFound = errors.New("form submission not found")
	ErrFormInvalid        = errors.New("invalid form submission")
	ErrFormNotFound       = errors.New("form not found on page")
	ErrFormKeyInvalid     = errors.New("formKey is required and may only contain a-z, 0-9, - and _")
	ErrSubmissionStatus   = errors.New("status must be new, read or archived")
)

// HoneypotField 是隐藏输入框的名称，机器人填写后提交会被静默丢弃。
const HoneypotField = "_gotcha"

const (
	maxFormValueLength = 5000
	maxFreeformFields  = 30
)

var (
	formKeyPattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)
	telPattern       = regexp.MustCompile(`^[0-9+()./\- ]{3,40}$`)
)

// FormValidationError 列出每个字段的问题。
type FormValidationError struct {
	Fields map[string]string
}

func (e *FormValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return strings.Join(parts, "; ")
}

func (e *FormValidationError) Is(target error) bool {
	return target == ErrFormInvalid
}

// FormService 接收公开表单提交并提供后台收件箱操作。
type FormService struct {
	db       *gorm.DB
	notifier notify.Notifier
	logger   *logrus.Logger
}

// SubmissionInput 为一次公开提交。
type SubmissionInput struct {
	FormKey   string
	Locale    string
	PageID    *uint
	Data      map[string]interface{}
	IP        string
	UserAgent string
}

// SubmitResult 描述提交结果；Discarded 为 true 时表示命中蜜罐未落库。
type SubmitResult struct {
	Submission *db.FormSubmission
	Discarded  bool
}

// SubmissionFilter 为后台列表过滤条件。
type SubmissionFilter struct {
	FormKey string
	Status  string
	Page    int
	PerPage int
}

// SubmissionListResult 为分页列表结果。
type SubmissionListResult struct {
	Submissions []db.FormSubmission
	Total       int64
	TotalPages  int
	Page        int
	PerPage     int
}

// NewFormService 构造 FormService；notifier 为 nil 时不发送通知。
func NewFormService(gdb *gorm.DB, notifier notify.Notifier, logger *logrus.Logger) *FormService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FormService{db: gdb, notifier: notifier, logger: logger}
}

// Submit 校验、清洗并保存提交，然后同步发送通知；通知失败只记录日志。
func (s *FormService) Submit(ctx context.Context, tenantID uint, input SubmissionInput) (*SubmitResult, error) {
	if honeypot, ok := input.Data[HoneypotField]; ok && strings.TrimSpace(fmt.Sprint(honeypot)) != "" {
		s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "ip": input.IP}).Info("form honeypot triggered")
		return &SubmitResult{Discarded: true}, nil
	}

	formKey := strings.ToLower(strings.TrimSpace(input.FormKey))
	if !formKeyPattern.MatchString(formKey) {
		return nil, ErrFormKeyInvalid
	}

	var tenant db.Tenant
	if err := s.db.First(&tenant, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}

	code := tenant.DefaultLocale
	if strings.TrimSpace(input.Locale) != "" {
		normalized, err := normalizeLocale(input.Locale)
		if err != nil {
			return nil, err
		}
		code = normalized
	}

	var (
		values map[string]string
		err    error
	)
	if input.PageID != nil {
		form, ferr := s.findForm(tenantID, *input.PageID, formKey)
		if ferr != nil {
			return nil, ferr
		}
		values, err = validateAgainstForm(form, input.Data)
	} else {
		values, err = validateFreeform(input.Data)
	}
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}

	submission := db.FormSubmission{
		TenantID:  tenantID,
		FormKey:   formKey,
		Locale:    code,
		PageID:    input.PageID,
		Name:      values["name"],
		Email:     values["email"],
		Data:      datatypes.JSON(data),
		Status:    db.SubmissionStatusNew,
		IP:        truncate(input.IP, 64),
		UserAgent: truncate(input.UserAgent, 300),
	}
	if err := s.db.Create(&submission).Error; err != nil {
		return nil, err
	}

	if s.notifier != nil {
		err := s.notifier.NotifySubmission(ctx, notify.Submission{
			ID:         submission.ID,
			TenantName: tenant.Name,
			FormKey:    submission.FormKey,
			Locale:     submission.Locale,
			Name:       submission.Name,
			Email:      submission.Email,
			Fields:     values,
			CreatedAt:  submission.CreatedAt,
		})
		if err != nil {
			s.logger.WithError(err).WithField("submission_id", submission.ID).Warn("form notification failed")
		}
	}

	return &SubmitResult{Submission: &submission}, nil
}

func (s *FormService) findForm(tenantID, pageID uint, formKey string) (*blocks.ContactForm, error) {
	var page db.Page
	if err := s.db.Where("tenant_id = ?", tenantID).First(&page, pageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageReference
		}
		return nil, err
	}

	var rows []db.Block
	if err := s.db.Where("page_id = ? AND type = ?", page.ID, blocks.TypeContactForm).Order("sort_order asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		payload, err := blocks.Decode(row.Type, row.Data)
		if err != nil {
			continue
		}
		if form, ok := payload.(*blocks.ContactForm); ok && form.FormKey == formKey {
			return form, nil
		}
	}
	return nil, ErrFormNotFound
}

func validateAgainstForm(form *blocks.ContactForm, data map[string]interface{}) (map[string]string, error) {
	problems := make(map[string]string)
	values := make(map[string]string, len(form.Fields))

	for _, field := range form.Fields {
		raw, present := data[field.Name]
		value, ok := scalarString(raw)
		if present && !ok {
			problems[field.Name] = "must be a text value"
			continue
		}
		value = blocks.PlainText(value)

		if field.Type == blocks.FieldCheckbox {
			checked := value == "true" || value == "on" || value == "1" || value == "yes"
			if field.Required && !checked {
				problems[field.Name] = "is required"
				continue
			}
			if checked {
				values[field.Name] = "true"
			}
			continue
		}

		if value == "" {
			if field.Required {
				problems[field.Name] = "is required"
			}
			continue
		}
		if len(value) > maxFormValueLength {
			problems[field.Name] = fmt.Sprintf("must be at most %d characters", maxFormValueLength)
			continue
		}

		switch field.Type {
		case blocks.FieldEmail:
			if inputValidator.Var(value, "email") != nil {
				problems[field.Name] = "must be a valid email address"
				continue
			}
		case blocks.FieldTel:
			if !telPattern.MatchString(value) {
				problems[field.Name] = "must be a valid phone number"
				continue
			}
		case blocks.FieldSelect:
			if !containsString(field.Options, value) {
				problems[field.Name] = "must be one of the listed options"
				continue
			}
		}
		values[field.Name] = value
	}

	if len(problems) > 0 {
		return nil, &FormValidationError{Fields: problems}
	}
	return values, nil
}

func validateFreeform(data map[string]interface{}) (map[string]string, error) {
	if len(data) == 0 {
		return nil, &FormValidationError{Fields: map[string]string{"data": "must contain at least one field"}}
	}
	if len(data) > maxFreeformFields {
		return nil, &FormValidationError{Fields: map[string]string{"data": fmt.Sprintf("may contain at most %d fields", maxFreeformFields)}}
	}

	problems := make(map[string]string)
	values := make(map[string]string, len(data))
	for key, raw := range data {
		if !fieldNamePattern.MatchString(key) {
			problems[key] = "is not a valid field name"
			continue
		}
		value, ok := scalarString(raw)
		if !ok {
			problems[key] = "must be a text value"
			continue
		}
		value = blocks.PlainText(value)
		if len(value) > maxFormValueLength {
			problems[key] = fmt.Sprintf("must be at most %d characters", maxFormValueLength)
			continue
		}
		if value != "" {
			values[key] = value
		}
	}
	if email, ok := values["email"]; ok && inputValidator.Var(email, "email") != nil {
		problems["email"] = "must be a valid email address"
	}
	if len(problems) == 0 && len(values) == 0 {
		problems["data"] = "must contain at least one non-empty field"
	}
	if len(problems) > 0 {
		return nil, &FormValidationError{Fields: problems}
	}
	return values, nil
}

func scalarString(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// List 分页返回提交记录，最新在前。
func (s *FormService) List(tenantID uint, filter SubmissionFilter) (*SubmissionListResult, error) {
	query, err := s.filtered(tenantID, filter)
	if err != nil {
		return nil, err
	}
	page, perPage := normalizePagination(filter.Page, filter.PerPage)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var submissions []db.FormSubmission
	if err := query.Order("created_at desc, id desc").Offset((page - 1) * perPage).Limit(perPage).Find(&submissions).Error; err != nil {
		return nil, err
	}
	return &SubmissionListResult{
		Submissions: submissions,
		Total:       total,
		TotalPages:  totalPages(total, perPage),
		Page:        page,
		PerPage:     perPage,
	}, nil
}

func (s *FormService) filtered(tenantID uint, filter SubmissionFilter) (*gorm.DB, error) {
	query := s.db.Model(&db.FormSubmission{}).Where("tenant_id = ?", tenantID)
	if key := strings.ToLower(strings.TrimSpace(filter.FormKey)); key != "" {
		query = query.Where("form_key = ?", key)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		if !validSubmissionStatus(status) {
			return nil, ErrSubmissionStatus
		}
		query = query.Where("status = ?", status)
	}
	return query, nil
}

// Get 读取提交记录。
func (s *FormService) Get(tenantID, id uint) (*db.FormSubmission, error) {
	var submission db.FormSubmission
	if err := s.db.Where("tenant_id = ?", tenantID).First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// UpdateStatus 修改提交状态。
func (s *FormService) UpdateStatus(tenantID, id uint, status string) (*db.FormSubmission, error) {
	status = strings.TrimSpace(status)
	if !validSubmissionStatus(status) {
		return nil, ErrSubmissionStatus
	}
	submission, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(submission).Update("status", status).Error; err != nil {
		return nil, err
	}
	submission.Status = status
	return submission, nil
}

// Delete 删除提交记录。
func (s *FormService) Delete(tenantID, id uint) error {
	result := s.db.Where("tenant_id = ?", tenantID).Delete(&db.FormSubmission{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// CountNew 统计未读提交。
func (s *FormService) CountNew(tenantID uint) (int64, error) {
	var count int64
	err := s.db.Model(&db.FormSubmission{}).
		Where("tenant_id = ? AND status = ?", tenantID, db.SubmissionStatusNew).
		Count(&count).Error
	return count, err
}

// Recent 返回最近的若干条提交。
func (s *FormService) Recent(tenantID uint, limit int) ([]db.FormSubmission, error) {
	if limit <= 0 {
		limit = 5
	}
	var submissions []db.FormSubmission
	err := s.db.Where("tenant_id = ?", tenantID).Order("created_at desc, id desc").Limit(limit).Find(&submissions).Error
	return submissions, err
}

// ExportCSV 以 CSV 写出符合过滤条件的全部提交，其余数据字段按名称排序追加为列。
func (s *FormService) ExportCSV(tenantID uint, filter SubmissionFilter, w io.Writer) error {
	query, err := s.filtered(tenantID, filter)
	if err != nil {
		return err
	}
	var submissions []db.FormSubmission
	if err := query.Order("created_at asc, id asc").Find(&submissions).Error; err != nil {
		return err
	}

	decoded := make([]map[string]string, len(submissions))
	keySet := make(map[string]struct{})
	for i, submission := range submissions {
		fields := map[string]string{}
		if len(submission.Data) > 0 {
			if err := json.Unmarshal(submission.Data, &fields); err != nil {
				return err
			}
		}
		for key := range fields {
			if key == "name" || key == "email" {
				continue
			}
			keySet[key] = struct{}{}
		}
		decoded[i] = fields
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	writer := csv.NewWriter(w)
	header := append([]string{"id", "created_at", "form_key", "locale", "status", "name", "email"}, keys...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, submission := range submissions {
		row := []string{
			strconv.FormatUint(uint64(submission.ID), 10),
			submission.CreatedAt.UTC().Format(time.RFC3339),
			submission.FormKey,
			submission.Locale,
			submission.Status,
			csvSafe(submission.Name),
			csvSafe(submission.Email),
		}
		for _, key := range keys {
			row = append(row, csvSafe(decoded[i][key]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// csvSafe 防止表格软件把值当作公式执行。
func csvSafe(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}

func validSubmissionStatus(status string) bool {
	switch status {
	case db.SubmissionStatusNew, db.SubmissionStatusRead, db.SubmissionStatusArchived:
		return true
	}
	return false
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// truncate 按字节上限截断，并退回到完整字符边界。
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit]
}
