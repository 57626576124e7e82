// ABOUTME: Tests for version constants
// ABOUTME: Ensures version information is defined and well formed
package version

import (
	"regexp"
	"testing"
)

func TestVersionIsSemver(t *testing.T) {
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)
	if !semver.MatchString(Version) {
		t.Errorf("Version %q is not major.minor.patch", Version)
	}
}

func TestNamesDefined(t *testing.T) {
	tests := map[string]string{
		"Product":      Product,
		"Manufacturer": Manufacturer,
	}

	for name, value := range tests {
		if value == "" {
			t.Errorf("%s should not be empty", name)
		}
		if len(value) > 100 {
			t.Errorf("%s is unreasonably long", name)
		}
	}
}

func TestNotPlaceholder(t *testing.T) {
	placeholders := []string{"TODO", "FIXME", "XXX", "placeholder", "dev"}

	for _, placeholder := range placeholders {
		for _, value := range []string{Version, Product, Manufacturer} {
			if value == placeholder {
				t.Errorf("placeholder value %q in version constants", placeholder)
			}
		}
	}
}
