package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"elms/internal/domain/access"
)

const (
	KeyApprovalLevels         = "leave_approval_levels"
	KeyAllowedAttachmentTypes = "allowed_attachment_types"
	KeyMaxAttachmentSize      = "max_attachment_size"
	KeyPaginationLimit        = "pagination_limit"
)

const (
	MaxPaginationLimit = 200
)

var ErrInvalidSetting = errors.New("invalid setting")

type Settings struct {
	ApprovalLevels         int      `json:"leaveApprovalLevels"`
	AllowedAttachmentTypes []string `json:"allowedAttachmentTypes"`
	MaxAttachmentSize      int64    `json:"maxAttachmentSize"`
	PaginationLimit        int      `json:"paginationLimit"`
}

func Defaults() Settings {
	return Settings{
		ApprovalLevels:         1,
		AllowedAttachmentTypes: []string{"pdf", "jpg", "jpeg", "png", "doc", "docx"},
		MaxAttachmentSize:      2 << 20,
		PaginationLimit:        25,
	}
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	ApprovalLevels         *int     `json:"leaveApprovalLevels" validate:"omitempty,min=1,max=3"`
	AllowedAttachmentTypes []string `json:"allowedAttachmentTypes" validate:"omitempty,dive,required,max=10"`
	MaxAttachmentSize      *int64   `json:"maxAttachmentSize" validate:"omitempty,min=1"`
	PaginationLimit        *int     `json:"paginationLimit" validate:"omitempty,min=1,max=200"`
}

func (s Settings) Apply(p Patch) Settings {
	if p.ApprovalLevels != nil {
		s.ApprovalLevels = *p.ApprovalLevels
	}
	if p.AllowedAttachmentTypes != nil {
		s.AllowedAttachmentTypes = normalizeExtensions(p.AllowedAttachmentTypes)
	}
	if p.MaxAttachmentSize != nil {
		s.MaxAttachmentSize = *p.MaxAttachmentSize
	}
	if p.PaginationLimit != nil {
		s.PaginationLimit = *p.PaginationLimit
	}
	return s
}

func (s Settings) Validate() error {
	if s.ApprovalLevels < 1 || s.ApprovalLevels > access.MaxApprovalLevels {
		return fmt.Errorf("%w: %s must be between 1 and %d", ErrInvalidSetting, KeyApprovalLevels, access.MaxApprovalLevels)
	}
	if len(s.AllowedAttachmentTypes) == 0 {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidSetting, KeyAllowedAttachmentTypes)
	}
	if s.MaxAttachmentSize <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidSetting, KeyMaxAttachmentSize)
	}
	if s.PaginationLimit < 1 || s.PaginationLimit > MaxPaginationLimit {
		return fmt.Errorf("%w: %s must be between 1 and %d", ErrInvalidSetting, KeyPaginationLimit, MaxPaginationLimit)
	}
	return nil
}

// encode flattens settings into system_settings rows.
func (s Settings) encode() map[string]string {
	return map[string]string{
		KeyApprovalLevels:         strconv.Itoa(s.ApprovalLevels),
		KeyAllowedAttachmentTypes: strings.Join(s.AllowedAttachmentTypes, ","),
		KeyMaxAttachmentSize:      strconv.FormatInt(s.MaxAttachmentSize, 10),
		KeyPaginationLimit:        strconv.Itoa(s.PaginationLimit),
	}
}

// decode overlays stored rows on the defaults. Unknown keys are ignored and
// unparsable values keep the default.
func decode(rows map[string]string) Settings {
	out := Defaults()
	if raw, ok := rows[KeyApprovalLevels]; ok {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v >= 1 && v <= access.MaxApprovalLevels {
			out.ApprovalLevels = v
		}
	}
	if raw, ok := rows[KeyAllowedAttachmentTypes]; ok {
		if exts := normalizeExtensions(strings.Split(raw, ",")); len(exts) > 0 {
			out.AllowedAttachmentTypes = exts
		}
	}
	if raw, ok := rows[KeyMaxAttachmentSize]; ok {
		if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && v > 0 {
			out.MaxAttachmentSize = v
		}
	}
	if raw, ok := rows[KeyPaginationLimit]; ok {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v > 0 && v <= MaxPaginationLimit {
			out.PaginationLimit = v
		}
	}
	return out
}

func normalizeExtensions(values []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), "."))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
