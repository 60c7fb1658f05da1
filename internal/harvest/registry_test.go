package harvest

import (
	"reflect"
	"testing"

	"github.com/david/rfp-harvester/internal/config"
)

func registryConfig(enabled ...string) *config.Config {
	cfg := &config.Config{}
	cfg.Plugins.Enabled = enabled
	cfg.Scraping.TimeoutSeconds = 30
	cfg.Scraping.UserAgent = "test-agent"
	cfg.Scraping.GovtechURLs = []string{"https://example.com/biz"}
	cfg.Scraping.StateURLs = []string{"https://example.com/esbd"}
	return cfg
}

func TestRegistryLoadsEnabledPlugins(t *testing.T) {
	reg := NewRegistry(registryConfig("federal_opportunities", "state_procurement"))

	want := []string{"federal_opportunities", "state_procurement"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	if _, err := reg.Get("federal_opportunities"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := reg.Get("govtech_scraper"); err == nil {
		t.Fatal("expected error for disabled plugin")
	}
}

func TestRegistrySkipsUnknownNames(t *testing.T) {
	reg := NewRegistry(registryConfig("federal_opportunities", "no_such_plugin"))
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"federal_opportunities"}) {
		t.Fatalf("Names() = %v", got)
	}
}

func TestRegistryReload(t *testing.T) {
	reg := NewRegistry(registryConfig("federal_opportunities"))
	reg.Reload(registryConfig("govtech_scraper", "state_procurement"))

	want := []string{"govtech_scraper", "state_procurement"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("after reload Names() = %v, want %v", got, want)
	}
}
