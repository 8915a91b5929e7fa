package bootstrap

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"pyinstaller-studio/internal/domain"
	"pyinstaller-studio/internal/packager"
)

// GetPackagingOptions returns the packaging switches with their state in the
// current profile.
func (a *App) GetPackagingOptions() []domain.PackagingOption {
	return packager.Options(a.GetSettings())
}

// SetPackagingOption toggles one packaging switch and saves the profile.
func (a *App) SetPackagingOption(optionID string, enabled bool) (domain.Settings, error) {
	id := strings.TrimSpace(optionID)
	if id == "" {
		return domain.Settings{}, fmt.Errorf("option id is required")
	}

	if _, found := getPackagingOptionByID(id); !found {
		return domain.Settings{}, fmt.Errorf("unknown option id: %s", id)
	}

	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = applyPackagingOption(normalizeSettings(settings), id, enabled)

	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return settings, nil
}

func getPackagingOptionByID(id string) (domain.PackagingOption, bool) {
	return lo.Find(packager.Options(domain.Settings{}), func(opt domain.PackagingOption) bool {
		return opt.ID == id
	})
}

func applyPackagingOption(settings domain.Settings, id string, enabled bool) domain.Settings {
	switch id {
	case "noconsole":
		settings.NoConsole = enabled
	case "onefile":
		settings.OneFile = enabled
	case "debug":
		settings.Debug = enabled
	}
	return settings
}
