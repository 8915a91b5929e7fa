package packager

import (
	"strings"

	"github.com/samber/lo"

	"pyinstaller-studio/internal/domain"
)

var optionCatalog = []domain.PackagingOption{
	{
		ID:          "noconsole",
		Name:        "Hide console",
		Flag:        "--noconsole",
		Description: "Do not open a console window for the packaged program.",
	},
	{
		ID:          "onefile",
		Name:        "Single file",
		Flag:        "--onefile",
		Description: "Bundle everything into one executable.",
	},
	{
		ID:          "debug",
		Name:        "Debug bootloader",
		Flag:        "--debug",
		Description: "Print bootloader diagnostics when the program starts.",
	},
}

// Options returns the boolean switch catalog with Enabled reflecting settings.
func Options(settings domain.Settings) []domain.PackagingOption {
	enabled := map[string]bool{
		"noconsole": settings.NoConsole,
		"onefile":   settings.OneFile,
		"debug":     settings.Debug,
	}
	return lo.Map(optionCatalog, func(opt domain.PackagingOption, _ int) domain.PackagingOption {
		opt.Enabled = enabled[opt.ID]
		return opt
	})
}

// ExpandFlags renders enabled switches in catalog order followed by the
// free-form arguments split on whitespace.
func ExpandFlags(settings domain.Settings) []string {
	flags := lo.FilterMap(Options(settings), func(opt domain.PackagingOption, _ int) (string, bool) {
		return opt.Flag, opt.Enabled
	})
	return append(flags, strings.Fields(settings.CustomArgs)...)
}
