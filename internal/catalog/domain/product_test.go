package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	p, err := NewProduct("Mouse", 1999, 5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, p.AvailableStock)
	assert.Equal(t, 0, p.ReservedStock())

	_, err = NewProduct("", 1, 1, time.Now())
	assert.ErrorIs(t, err, ErrInvalidProduct)
	_, err = NewProduct("Mouse", -1, 1, time.Now())
	assert.ErrorIs(t, err, ErrInvalidProduct)
	_, err = NewProduct("Mouse", 1, -1, time.Now())
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestValidate_AvailableWithinTotal(t *testing.T) {
	p := Product{Name: "x", TotalStock: 3, AvailableStock: 4}
	assert.ErrorIs(t, p.Validate(), ErrInvalidProduct)

	p.AvailableStock = 1
	require.NoError(t, p.Validate())
	assert.Equal(t, 2, p.ReservedStock())
}
