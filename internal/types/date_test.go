package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func TestNextBillingDate(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		unit    int
		period  BillingPeriod
		want    time.Time
		wantErr bool
	}{
		{
			name:   "daily crosses month boundary",
			start:  time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
			unit:   5,
			period: BILLING_PERIOD_DAILY,
			want:   time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "weekly",
			start:  time.Date(2024, time.December, 30, 9, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_WEEKLY,
			want:   time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly clamps to leap day",
			start:  time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly clamps in non leap year",
			start:  time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly crosses year",
			start:  time.Date(2024, time.November, 15, 0, 0, 0, 0, time.UTC),
			unit:   2,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "quarterly",
			start:  time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_QUARTERLY,
			want:   time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "annual from leap day",
			start:  time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_ANNUAL,
			want:   time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "keeps location",
			start:  time.Date(2024, time.January, 31, 23, 30, 0, 0, ist),
			unit:   1,
			period: BILLING_PERIOD_DAILY,
			want:   time.Date(2024, time.February, 1, 23, 30, 0, 0, ist),
		},
		{
			name:    "invalid unit",
			start:   time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
			unit:    0,
			period:  BILLING_PERIOD_MONTHLY,
			wantErr: true,
		},
		{
			name:    "invalid period",
			start:   time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
			unit:    1,
			period:  BillingPeriod("fortnight"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBillingDate(tt.start, tt.unit, tt.period)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}

func TestSubscriptionStatus(t *testing.T) {
	assert.NoError(t, SubscriptionStatusFailing.Validate())
	assert.Error(t, SubscriptionStatus("paused").Validate())

	for _, s := range []SubscriptionStatus{SubscriptionStatusCancelled, SubscriptionStatusExpired, SubscriptionStatusCompleted} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []SubscriptionStatus{SubscriptionStatusPending, SubscriptionStatusTrialling, SubscriptionStatusActive, SubscriptionStatusFailing} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestIsMatchingCurrency(t *testing.T) {
	assert.True(t, IsMatchingCurrency("usd", "USD"))
	assert.True(t, IsMatchingCurrency(" Eur", "EUR "))
	assert.False(t, IsMatchingCurrency("USD", "CAD"))
	assert.False(t, IsMatchingCurrency("", "USD"))
}
