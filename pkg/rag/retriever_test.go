package rag

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/policyops/regamend/pkg/docparser"
)

// fakeIndex serves canned hits and records the requested page size.
type fakeIndex struct {
	hits      []RetrievedContext
	err       error
	lastTopK  int
	lastQuery string
	callCount int
}

func (f *fakeIndex) Search(ctx context.Context, query string, topK int) ([]RetrievedContext, error) {
	f.callCount++
	f.lastQuery = query
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	out := make([]RetrievedContext, len(f.hits))
	copy(out, f.hits)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeIndex) AddDocuments(ctx context.Context, chunks []docparser.PolicyChunk) error {
	return nil
}
func (f *fakeIndex) GetStats(ctx context.Context) (*IndexStats, error) { return &IndexStats{}, nil }
func (f *fakeIndex) DeleteCollection(ctx context.Context) error        { return nil }
func (f *fakeIndex) HealthCheck(ctx context.Context) error             { return nil }

func hit(docID, docName string, distance float64) RetrievedContext {
	return RetrievedContext{
		Content:  "body of " + docID,
		Distance: distance,
		Metadata: docparser.ChunkMetadata{DocID: docID, DocName: docName},
	}
}

var _ = Describe("Retriever", func() {
	var (
		ctx   context.Context
		index *fakeIndex
	)

	BeforeEach(func() {
		ctx = context.Background()
		index = &fakeIndex{}
	})

	Describe("priority boosting", func() {
		BeforeEach(func() {
			index.hits = []RetrievedContext{
				hit("ISP-001-01", "ISP-001-01 Security Policy.docx", 0.20),
				hit("ISP-002-01", "ISP-002-01 Cloud Policy.docx", 0.30),
				hit("ISP-003-01", "ISP-003-01 Backup Policy.docx", 0.40),
			}
		})

		It("multiplies the priority document's distance by the weight", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityDocID: "ISP-002-01", PriorityWeight: 0.85})

			results, err := r.Search(ctx, "cloud outsourcing controls", 5, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))

			var boosted *RetrievedContext
			for i := range results {
				if results[i].Metadata.DocID == "ISP-002-01" {
					boosted = &results[i]
				}
			}
			Expect(boosted).NotTo(BeNil())
			Expect(boosted.IsBoosted).To(BeTrue())
			Expect(boosted.OriginalDistance).To(Equal(0.30))
			Expect(boosted.Distance).To(BeNumerically("~", 0.30*0.85, 1e-12))
		})

		It("re-sorts ascending when a boosted hit overtakes another", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityDocID: "ISP-003-01", PriorityWeight: 0.25})

			results, err := r.Search(ctx, "backup retention", 5, "")
			Expect(err).NotTo(HaveOccurred())

			Expect(results[0].Metadata.DocID).To(Equal("ISP-003-01"))
			Expect(results[0].Distance).To(BeNumerically("~", 0.10, 1e-12))
			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Distance).To(BeNumerically("<=", results[i].Distance))
			}
		})

		It("leaves results untouched at weight 1.0", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityDocID: "ISP-002-01", PriorityWeight: 1.0})

			results, err := r.Search(ctx, "cloud outsourcing controls", 5, "")
			Expect(err).NotTo(HaveOccurred())

			for i, res := range results {
				Expect(res.IsBoosted).To(BeFalse())
				Expect(res.OriginalDistance).To(BeZero())
				Expect(res.Distance).To(Equal(index.hits[i].Distance))
			}
		})

		It("does not boost non-priority documents", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityDocID: "ISP-002-01", PriorityWeight: 0.85})

			results, err := r.Search(ctx, "cloud outsourcing controls", 5, "")
			Expect(err).NotTo(HaveOccurred())

			for _, res := range results {
				if res.Metadata.DocID != "ISP-002-01" {
					Expect(res.IsBoosted).To(BeFalse())
				}
			}
		})
	})

	Describe("restrict mode", func() {
		BeforeEach(func() {
			index.hits = []RetrievedContext{
				hit("ISP-001-01", "ISP-001-01 Security Policy.docx", 0.10),
				hit("XYZ-999-01", "Unrelated Policy.docx", 0.15),
				hit("ISP-001-01-02", "ISP-001-01 Security Policy Annex.docx", 0.20),
				hit("OTHER-002-01", "ISP-001-01 Security Policy Appendix.docx", 0.25),
				hit("ABC-123-01", "Another Policy.docx", 0.30),
			}
		})

		It("over-fetches and filters to one logical document", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityWeight: 1.0})

			results, err := r.Search(ctx, "access control", 5, "ISP-001-01")
			Expect(err).NotTo(HaveOccurred())
			Expect(index.lastTopK).To(Equal(15))

			Expect(results).To(HaveLen(3))
			// Exact id, sub-document prefix, and name containment all qualify.
			Expect(results[0].Metadata.DocID).To(Equal("ISP-001-01"))
			Expect(results[1].Metadata.DocID).To(Equal("ISP-001-01-02"))
			Expect(results[2].Metadata.DocID).To(Equal("OTHER-002-01"))
		})

		It("returns no hits when nothing matches the restriction", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityWeight: 1.0})

			results, err := r.Search(ctx, "access control", 5, "NOPE-000-00")
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("applies the configured default restriction when none is passed", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityWeight: 1.0, RestrictDocID: "ISP-001-01"})

			results, err := r.Search(ctx, "access control", 5, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(index.lastTopK).To(Equal(15))
			Expect(results).To(HaveLen(3))
		})
	})

	Describe("input handling", func() {
		It("rejects an empty query", func() {
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityWeight: 1.0})

			_, err := r.Search(ctx, "   ", 5, "")
			Expect(err).To(HaveOccurred())
			Expect(index.callCount).To(BeZero())
		})

		It("truncates to topK", func() {
			index.hits = []RetrievedContext{
				hit("A-1-1", "a.docx", 0.1),
				hit("B-1-1", "b.docx", 0.2),
				hit("C-1-1", "c.docx", 0.3),
			}
			r := NewRetriever(index, nil, RetrieverConfig{TopK: 5, PriorityWeight: 1.0})

			results, err := r.Search(ctx, "query", 2, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})
	})
})
