package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCategory_Valid(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		expected bool
	}{
		{"academic is valid", CategoryAcademic, true},
		{"behavior is valid", CategoryBehavior, true},
		{"payment is valid", CategoryPayment, true},
		{"general is valid", CategoryGeneral, true},
		{"empty is invalid", Category(""), false},
		{"unknown is invalid", Category("urgent"), false},
		{"uppercase is invalid", Category("ACADEMIC"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.Valid())
		})
	}
}

func TestTargetMode_Valid(t *testing.T) {
	tests := []struct {
		name     string
		mode     TargetMode
		expected bool
	}{
		{"auto is valid", TargetAuto, true},
		{"explicit is valid", TargetExplicit, true},
		{"empty is invalid", TargetMode(""), false},
		{"unknown is invalid", TargetMode("broadcast"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mode.Valid())
		})
	}
}

func TestNotification_Validate(t *testing.T) {
	tenantID := uuid.New()

	valid := func() Notification {
		return Notification{
			TenantID:   tenantID,
			Title:      "Parent-teacher conference",
			Body:       "The spring conference schedule is now available.",
			Category:   CategoryGeneral,
			TargetMode: TargetAuto,
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Notification)
		wantField string
	}{
		{
			name:   "valid notification",
			mutate: func(n *Notification) {},
		},
		{
			name:      "missing tenant",
			mutate:    func(n *Notification) { n.TenantID = uuid.Nil },
			wantField: "tenantID",
		},
		{
			name:      "missing title",
			mutate:    func(n *Notification) { n.Title = "" },
			wantField: "title",
		},
		{
			name:      "title too long",
			mutate:    func(n *Notification) { n.Title = strings.Repeat("a", 201) },
			wantField: "title",
		},
		{
			name:   "title at maximum length",
			mutate: func(n *Notification) { n.Title = strings.Repeat("a", 200) },
		},
		{
			// length is measured in runes, not bytes
			name:   "multibyte title at maximum length",
			mutate: func(n *Notification) { n.Title = strings.Repeat("あ", 200) },
		},
		{
			name:      "missing body",
			mutate:    func(n *Notification) { n.Body = "" },
			wantField: "body",
		},
		{
			name:      "invalid category",
			mutate:    func(n *Notification) { n.Category = Category("urgent") },
			wantField: "category",
		},
		{
			name:      "empty category",
			mutate:    func(n *Notification) { n.Category = "" },
			wantField: "category",
		},
		{
			name:      "invalid target mode",
			mutate:    func(n *Notification) { n.TargetMode = TargetMode("broadcast") },
			wantField: "targetMode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid()
			tt.mutate(&n)

			err := n.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestNotification_SentVia(t *testing.T) {
	n := Notification{
		SentViaPush:  true,
		SentViaEmail: false,
		SentViaSMS:   true,
	}

	assert.True(t, n.SentVia(ChannelPush))
	assert.False(t, n.SentVia(ChannelEmail))
	assert.True(t, n.SentVia(ChannelSMS))
	assert.False(t, n.SentVia(Channel("fax")))
}

func TestNotification_ZeroValue(t *testing.T) {
	var n Notification

	assert.Equal(t, uuid.Nil, n.ID)
	assert.Equal(t, uuid.Nil, n.TenantID)
	assert.Equal(t, "", n.Title)
	assert.Equal(t, "", n.Body)
	assert.False(t, n.SentViaPush)
	assert.False(t, n.SentViaEmail)
	assert.False(t, n.SentViaSMS)
	assert.Nil(t, n.Payload)
	assert.Nil(t, n.SentAt)
	assert.True(t, n.CreatedAt.IsZero())
	assert.Error(t, n.Validate())
}

func TestNotification_WithPayload(t *testing.T) {
	now := time.Now()
	n := Notification{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		Title:      "Invoice issued",
		Body:       "The March invoice has been issued.",
		Category:   CategoryPayment,
		TargetMode: TargetExplicit,
		Payload: map[string]any{
			"invoice_id": "inv_2203",
			"amount":     12800,
		},
		CreatedAt: now,
	}

	assert.NoError(t, n.Validate())
	assert.Equal(t, "inv_2203", n.Payload["invoice_id"])
	assert.Equal(t, 12800, n.Payload["amount"])
}
