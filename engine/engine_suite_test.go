package engine_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vogtb/sheetkernel/engine"
	"github.com/vogtb/sheetkernel/functions"
)

func TestEngineSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine Suite")
}

var _ = Describe("Calculation Engine", func() {
	var e *engine.Engine
	var sheet engine.SheetID

	number := func(address string) float64 {
		v, err := e.GetCellValue(address)
		Expect(err).NotTo(HaveOccurred())
		n, ok := v.Number()
		Expect(ok).To(BeTrue(), "value at %s is %v", address, v)
		return n
	}

	Context("built from a literal grid", func() {
		BeforeEach(func() {
			cfg := engine.DefaultConfig()
			cfg.MatrixDetection = false
			var err error
			e, err = engine.NewFromArray([][]string{
				{"1", "2", "=A1+B1"},
				{"3", "4", "=A2+B2"},
				{"", "", "=SUM(A1:B2)"},
			}, cfg, functions.Default())
			Expect(err).NotTo(HaveOccurred())
			sheet = 1
		})

		It("computes every formula", func() {
			Expect(number("C1")).To(Equal(3.0))
			Expect(number("C2")).To(Equal(7.0))
			Expect(number("C3")).To(Equal(10.0))
		})

		It("recomputes only the affected closure after an edit", func() {
			Expect(e.SetCellContent("A1", "10")).To(Succeed())
			Expect(number("C1")).To(Equal(12.0))
			Expect(number("C2")).To(Equal(7.0))
			Expect(number("C3")).To(Equal(19.0))
		})

		It("keeps values consistent across a row insertion", func() {
			Expect(e.AddRows(sheet, 1, 1)).To(Succeed())
			Expect(number("C4")).To(Equal(10.0))
			Expect(e.SetCellContent("A2", "100")).To(Succeed())
			Expect(number("C4")).To(Equal(110.0))
		})

		It("leaves no vertices to recompute after a mutator returns", func() {
			Expect(e.SetCellContent("B1", "7")).To(Succeed())
			Expect(e.VerticesToRecompute()).To(BeEmpty())
		})
	})

	Context("with a reference cycle", func() {
		BeforeEach(func() {
			var err error
			e, err = engine.NewFromArray([][]string{{"=B1", "=A1", "=B1+1"}},
				engine.DefaultConfig(), functions.Default())
			Expect(err).NotTo(HaveOccurred())
		})

		It("assigns the cycle error to every member and propagates it", func() {
			for _, address := range []string{"A1", "B1", "C1"} {
				v, err := e.GetCellValue(address)
				Expect(err).NotTo(HaveOccurred())
				Expect(v.IsError()).To(BeTrue(), "%s = %v", address, v)
				Expect(v.AsError().Code).To(Equal(engine.ErrorCycle))
			}
		})

		It("heals once the cycle is broken", func() {
			Expect(e.SetCellContent("B1", "5")).To(Succeed())
			Expect(number("A1")).To(Equal(5.0))
			Expect(number("C1")).To(Equal(6.0))
		})
	})
})
