package rag

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRAG(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Retrieval Suite")
}
