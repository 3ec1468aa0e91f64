package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyURL(t *testing.T) {
	client, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), Config{URL: "not-a-url://"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}
