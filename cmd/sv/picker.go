package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// chooseAssembly resolves which assembly to view. An explicit name must
// exist; a single assembly is picked silently; otherwise the user is asked
// when a terminal is attached.
func chooseAssembly(vs *model.Viewsheet, name string, interactive bool) (*model.Assembly, error) {
	if name != "" {
		a := vs.Find(name)
		if a == nil {
			return nil, fmt.Errorf("assembly %q not found (have %v)", name, vs.Names())
		}
		return a, nil
	}

	names := vs.Names()
	switch {
	case len(names) == 0:
		return nil, fmt.Errorf("viewsheet %q has no selection assemblies", vs.Name)
	case len(names) == 1:
		return vs.Find(names[0]), nil
	case !interactive:
		return nil, fmt.Errorf("viewsheet has %d assemblies, pick one with --assembly: %v", len(names), names)
	}

	picked, err := pickAssembly(vs)
	if err != nil {
		return nil, err
	}
	return vs.Find(picked), nil
}

// pickAssembly asks the user to choose an assembly.
func pickAssembly(vs *model.Viewsheet) (string, error) {
	var picked string
	options := make([]huh.Option[string], 0, len(vs.Assemblies))
	for _, a := range vs.Assemblies {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", a.Name(), a.Kind), a.Name()))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which selection do you want to view?").
				Options(options...).
				Value(&picked),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return "", err
	}
	return picked, nil
}
