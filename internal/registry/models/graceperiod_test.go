package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanCoexistIsSymmetric(t *testing.T) {
	for _, a := range GracePeriodTypes() {
		for _, b := range GracePeriodTypes() {
			assert.Equal(t, CanCoexist(a, b), CanCoexist(b, a), "%s / %s", a, b)
		}
	}
}

func TestCanCoexistMatrix(t *testing.T) {
	allowedPairs := [][2]GracePeriodType{
		{GracePeriodAdd, GracePeriodRenew},
		{GracePeriodRenew, GracePeriodTransfer},
		{GracePeriodAutoRenew, GracePeriodTransfer},
	}
	allowed := make(map[[2]GracePeriodType]bool)
	for _, pair := range allowedPairs {
		allowed[pair] = true
	}
	for _, a := range GracePeriodTypes() {
		for _, b := range GracePeriodTypes() {
			want := allowed[[2]GracePeriodType{a, b}] || allowed[[2]GracePeriodType{b, a}]
			assert.Equal(t, want, CanCoexist(a, b), "%s / %s", a, b)
		}
	}
}

func TestRedemptionCoexistsWithNothing(t *testing.T) {
	for _, other := range GracePeriodTypes() {
		assert.False(t, CanCoexist(GracePeriodRedemption, other), "redemption / %s", other)
	}
}

func TestSameTypeNeverCoexists(t *testing.T) {
	for _, gpType := range GracePeriodTypes() {
		assert.False(t, CanCoexist(gpType, gpType), "%s", gpType)
	}
}
