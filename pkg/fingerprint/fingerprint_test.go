package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf_Deterministic(t *testing.T) {
	a := Of("replicaCount: 1\nimage: vllm:latest")
	b := Of("replicaCount: 1\nimage: vllm:latest")

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestOf_DifferentTextsDiffer(t *testing.T) {
	a := Of("replicaCount: 1")
	b := Of("replicaCount: 2")

	assert.NotEqual(t, a, b)
}

func TestShort(t *testing.T) {
	fp := Of("some values document")

	assert.Equal(t, fp[:8], Short(fp, 8))
	assert.Equal(t, fp, Short(fp, 1000))
}
