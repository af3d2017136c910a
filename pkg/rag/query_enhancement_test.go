package rag

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/policyops/regamend/pkg/docparser"
)

var _ = Describe("QueryEnhancer", func() {
	var enhancer *QueryEnhancer

	BeforeEach(func() {
		enhancer = NewQueryEnhancer()
	})

	Describe("BuildQuery", func() {
		It("joins title, amended text, and explanation", func() {
			item := docparser.RegulationDiffItem{
				SectionTitle: "Article 2",
				NewText:      "Providers shall encrypt data at rest.",
				OldText:      "Providers should encrypt data at rest.",
				Explanation:  "Strengthened to a mandatory control.",
			}

			query := enhancer.BuildQuery(item)
			Expect(query).To(Equal("Article 2\nProviders shall encrypt data at rest.\nStrengthened to a mandatory control."))
		})

		It("falls back to the current text for deletions", func() {
			item := docparser.RegulationDiffItem{
				SectionTitle: "Article 8",
				OldText:      "Legacy reporting requirement.",
				Explanation:  "Provision removed.",
			}

			query := enhancer.BuildQuery(item)
			Expect(query).To(ContainSubstring("Legacy reporting requirement."))
		})

		It("skips empty fields", func() {
			item := docparser.RegulationDiffItem{SectionTitle: "Article 3"}
			Expect(enhancer.BuildQuery(item)).To(Equal("Article 3"))
		})
	})

	Describe("ExtractKeyPhrases", func() {
		It("captures obligation clauses", func() {
			phrases := enhancer.ExtractKeyPhrases(
				"The provider shall conduct annual audits. Staff may not share credentials.")

			Expect(phrases).To(ContainElement("shall conduct annual audits"))
			Expect(phrases).To(ContainElement("may not share credentials"))
		})

		It("includes known domain terms", func() {
			phrases := enhancer.ExtractKeyPhrases("Rules for cloud computing and outsourcing arrangements.")

			Expect(phrases).To(ContainElement("outsourcing"))
		})

		It("deduplicates", func() {
			phrases := enhancer.ExtractKeyPhrases("Providers shall keep logs. Providers shall keep logs.")

			count := 0
			for _, p := range phrases {
				if p == "shall keep logs" {
					count++
				}
			}
			Expect(count).To(Equal(1))
		})
	})

	Describe("DiffSummary", func() {
		It("reports near-identical token pairs as replacements", func() {
			summary := enhancer.DiffSummary(
				"The provider keeps records.",
				"The providers keeps records.")

			Expect(summary).To(ContainSubstring("replaced"))
			Expect(summary).To(ContainSubstring("provider -> providers"))
		})

		It("reports additions and removals", func() {
			summary := enhancer.DiffSummary(
				"Records are retained.",
				"Records are retained and encrypted.")

			Expect(summary).To(ContainSubstring("added"))
			Expect(summary).To(ContainSubstring("encrypted"))
		})

		It("is empty for identical texts", func() {
			Expect(enhancer.DiffSummary("same text", "same text")).To(BeEmpty())
		})
	})

	Describe("BuildEnhancedQuery", func() {
		It("layers phrases and changes onto the base query", func() {
			item := docparser.RegulationDiffItem{
				SectionTitle: "Article 2",
				OldText:      "Providers should encrypt data.",
				NewText:      "Providers shall encrypt data.",
				Explanation:  "Mandatory control.",
			}

			query := enhancer.BuildEnhancedQuery(item)
			Expect(query).To(ContainSubstring("Article 2"))
			Expect(query).To(ContainSubstring("Key requirements:"))
			Expect(query).To(ContainSubstring("Changes:"))
		})
	})
})
