package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeOverlaysDefaults(t *testing.T) {
	got := decode(map[string]string{
		KeyApprovalLevels:         "2",
		KeyAllowedAttachmentTypes: " .PDF, png ,pdf,",
		KeyMaxAttachmentSize:      "1048576",
		"unknown":                 "x",
	})
	assert.Equal(t, 2, got.ApprovalLevels)
	assert.Equal(t, []string{"pdf", "png"}, got.AllowedAttachmentTypes)
	assert.EqualValues(t, 1048576, got.MaxAttachmentSize)
	assert.Equal(t, Defaults().PaginationLimit, got.PaginationLimit)
}

func TestDecodeIgnoresInvalidValues(t *testing.T) {
	got := decode(map[string]string{
		KeyApprovalLevels:    "7",
		KeyMaxAttachmentSize: "-1",
		KeyPaginationLimit:   "lots",
	})
	assert.Equal(t, Defaults(), got)
}

func TestEncodeDecodeKeepsValues(t *testing.T) {
	cfg := Settings{ApprovalLevels: 3, AllowedAttachmentTypes: []string{"pdf"}, MaxAttachmentSize: 10, PaginationLimit: 50}
	assert.Equal(t, cfg, decode(cfg.encode()))
}

func TestApplyAndValidate(t *testing.T) {
	levels := 3
	limit := 0
	patched := Defaults().Apply(Patch{ApprovalLevels: &levels})
	assert.Equal(t, 3, patched.ApprovalLevels)
	assert.NoError(t, patched.Validate())

	bad := Defaults().Apply(Patch{PaginationLimit: &limit})
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSetting)

	tooMany := 4
	assert.ErrorIs(t, Defaults().Apply(Patch{ApprovalLevels: &tooMany}).Validate(), ErrInvalidSetting)

	empty := Defaults().Apply(Patch{AllowedAttachmentTypes: []string{" "}})
	assert.ErrorIs(t, empty.Validate(), ErrInvalidSetting)
}
