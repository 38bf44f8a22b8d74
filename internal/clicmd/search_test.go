package clicmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "http://h/api/v1/search?query=insulin", searchURL("http://h", "insulin", 0, 0))
	assert.Equal(t, "http://h/api/v1/search?query=insulin&page=2&per_page=20", searchURL("http://h", "insulin", 2, 20))
}

func TestSearchURLEscapesQuery(t *testing.T) {
	assert.Equal(t, "http://h/api/v1/search?query=homo+sapiens", searchURL("http://h", "homo sapiens", 0, 0))
}
