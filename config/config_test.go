package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("DefaultConfig", func() {
	It("returns a config that validates cleanly", func() {
		cfg := config.DefaultConfig()
		Expect(cfg.Validate()).To(Succeed())
	})

	It("sets a nonzero pipeline width", func() {
		cfg := config.DefaultConfig()
		Expect(cfg.Width).To(BeNumerically(">", 0))
	})

	It("sizes each cache level as a multiple of associativity*block_size", func() {
		cfg := config.DefaultConfig()
		for _, lvl := range []config.LevelConf{cfg.Cache.L1I, cfg.Cache.L1D, cfg.Cache.L2, cfg.Cache.L3} {
			Expect(lvl.Size % (lvl.Associativity * lvl.BlockSize)).To(Equal(0))
		}
	})
})

var _ = Describe("Validate", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.DefaultConfig()
	})

	It("rejects a zero width", func() {
		cfg.Width = 0
		Expect(cfg.Validate()).To(HaveOccurred())
	})

	It("rejects an unknown backend", func() {
		cfg.Backend = "bogus"
		Expect(cfg.Validate()).To(HaveOccurred())
	})

	It("rejects a misaligned cache size", func() {
		cfg.Cache.L1D.Size = cfg.Cache.L1D.Associativity*cfg.Cache.L1D.BlockSize + 1
		Expect(cfg.Validate()).To(HaveOccurred())
	})

	It("rejects a zero ram size", func() {
		cfg.Memory.RAMSize = 0
		Expect(cfg.Validate()).To(HaveOccurred())
	})

	It("rejects zero TLB sizes", func() {
		cfg.MMU.ITLBSize = 0
		Expect(cfg.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("LoadConfig and SaveConfig", func() {
	It("round-trips a config through a JSON file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "cfg.json")

		cfg := config.DefaultConfig()
		cfg.Width = 6
		cfg.BranchPredictor.Family = "tage"

		Expect(cfg.SaveConfig(path)).To(Succeed())

		loaded, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Width).To(Equal(6))
		Expect(loaded.BranchPredictor.Family).To(Equal("tage"))
	})

	It("fills unspecified fields from the default when loading a partial file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "partial.json")
		Expect(os.WriteFile(path, []byte(`{"width": 8}`), 0644)).To(Succeed())

		loaded, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Width).To(Equal(8))
		Expect(loaded.Memory.RAMSize).To(Equal(config.DefaultConfig().Memory.RAMSize))
	})

	It("returns an error for a nonexistent file", func() {
		_, err := config.LoadConfig("/nonexistent/path/cfg.json")
		Expect(err).To(HaveOccurred())
	})

	It("returns an error for invalid JSON", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "bad.json")
		Expect(os.WriteFile(path, []byte(`{not json`), 0644)).To(Succeed())

		_, err := config.LoadConfig(path)
		Expect(err).To(HaveOccurred())
	})

	It("returns an error when the loaded config fails validation", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "invalid.json")
		Expect(os.WriteFile(path, []byte(`{"width": 0}`), 0644)).To(Succeed())

		_, err := config.LoadConfig(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Clone", func() {
	It("returns an independent copy", func() {
		cfg := config.DefaultConfig()
		clone := cfg.Clone()
		clone.Width = 999
		Expect(cfg.Width).NotTo(Equal(999))
	})
})
