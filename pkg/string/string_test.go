package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "serial_number", ToSnakeCase("SerialNumber"))
	assert.Equal(t, "recipient_id", ToSnakeCase("RecipientID"))
}

func TestMaskTail(t *testing.T) {
	assert.Equal(t, "201900***", MaskTail("2019001234", 6))
	assert.Equal(t, "***", MaskTail("12345", 6))
	assert.Equal(t, "", MaskTail("", 6))
}
