package rag

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/policyops/regamend/pkg/docparser"
)

// fakeReader serves full documents from a map; missing names fail.
type fakeReader struct {
	docs map[string]string
}

func (f *fakeReader) ReadPolicyDocument(ctx context.Context, name string) (string, error) {
	if text, ok := f.docs[name]; ok {
		return text, nil
	}
	return "", fmt.Errorf("document %s not on disk", name)
}

func snippetHit(docName, sectionPath string, distance float64) RetrievedContext {
	return RetrievedContext{
		Content:  "excerpt from " + sectionPath,
		Distance: distance,
		Metadata: docparser.ChunkMetadata{DocName: docName, SectionPath: sectionPath},
	}
}

var _ = Describe("ContextAssembler", func() {
	var (
		ctx    context.Context
		reader *fakeReader
	)

	BeforeEach(func() {
		ctx = context.Background()
		reader = &fakeReader{docs: map[string]string{
			"security.docx": "Full text of the security policy.",
			"cloud.docx":    "Full text of the cloud policy.",
		}}
	})

	It("groups hits into one context per document", func() {
		a := NewContextAssembler(reader, AssemblerConfig{})
		hits := []RetrievedContext{
			snippetHit("security.docx", "Chapter 1", 0.10),
			snippetHit("cloud.docx", "Chapter 2", 0.20),
			snippetHit("security.docx", "Chapter 3", 0.30),
		}

		contexts := a.Assemble(ctx, hits)
		Expect(contexts).To(HaveLen(2))

		Expect(contexts[0].DocName).To(Equal("security.docx"))
		Expect(contexts[0].Type).To(Equal(ContextFullDocument))
		Expect(contexts[0].Content).To(Equal("Full text of the security policy."))
		Expect(contexts[0].Distance).To(Equal(0.10))
		Expect(contexts[0].SnippetCount).To(Equal(2))
		Expect(contexts[0].RelevantSections).To(Equal([]string{"Chapter 1", "Chapter 3"}))

		Expect(contexts[1].DocName).To(Equal("cloud.docx"))
		Expect(contexts[1].SnippetCount).To(Equal(1))
	})

	It("degrades to snippets when the full document cannot be read", func() {
		a := NewContextAssembler(reader, AssemblerConfig{})
		hits := []RetrievedContext{
			snippetHit("gone.docx", "Chapter 4", 0.15),
			snippetHit("gone.docx", "Chapter 5", 0.25),
		}

		contexts := a.Assemble(ctx, hits)
		Expect(contexts).To(HaveLen(1))
		Expect(contexts[0].Type).To(Equal(ContextSnippet))
		Expect(contexts[0].Section).To(Equal("Chapter 4"))
		// Only the most relevant chunk survives the degradation.
		Expect(contexts[0].Content).To(Equal("excerpt from Chapter 4"))
		Expect(contexts[0].SnippetCount).To(Equal(2))
		Expect(contexts[0].RelevantSections).To(Equal([]string{"Chapter 4", "Chapter 5"}))
	})

	It("never aborts on a partial read failure", func() {
		a := NewContextAssembler(reader, AssemblerConfig{})
		hits := []RetrievedContext{
			snippetHit("gone.docx", "Chapter 4", 0.10),
			snippetHit("security.docx", "Chapter 1", 0.20),
		}

		contexts := a.Assemble(ctx, hits)
		Expect(contexts).To(HaveLen(2))
		Expect(contexts[0].Type).To(Equal(ContextSnippet))
		Expect(contexts[1].Type).To(Equal(ContextFullDocument))
	})

	It("orders by best distance under the relevance policy", func() {
		a := NewContextAssembler(reader, AssemblerConfig{OrderPolicy: OrderRelevance})
		hits := []RetrievedContext{
			snippetHit("cloud.docx", "Chapter 2", 0.20),
			snippetHit("security.docx", "Chapter 1", 0.05),
		}

		contexts := a.Assemble(ctx, hits)
		Expect(contexts[0].DocName).To(Equal("security.docx"))
		Expect(contexts[1].DocName).To(Equal("cloud.docx"))
	})

	It("puts policy bodies before attachments under the primary-first policy", func() {
		reader.docs["security-F01.docx"] = "Attachment template text."
		a := NewContextAssembler(reader, AssemblerConfig{OrderPolicy: OrderPrimaryFirst})
		hits := []RetrievedContext{
			snippetHit("security-F01.docx", "Form 1", 0.05),
			snippetHit("security.docx", "Chapter 1", 0.30),
		}

		contexts := a.Assemble(ctx, hits)
		Expect(contexts[0].DocName).To(Equal("security.docx"))
		Expect(contexts[0].IsPrimary).To(BeTrue())
		Expect(contexts[1].DocName).To(Equal("security-F01.docx"))
		Expect(contexts[1].IsPrimary).To(BeFalse())
	})

	It("returns nothing for no hits", func() {
		a := NewContextAssembler(reader, AssemblerConfig{})
		Expect(a.Assemble(ctx, nil)).To(BeEmpty())
	})
})
