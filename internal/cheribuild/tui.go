package cheribuild

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// runTargetBrowser shows an interactive view of the dependency graph: the
// list of registered targets on the left, the selected target's direct and
// transitive dependencies on the right.
func runTargetBrowser(r *Registry) error {
	app := tview.NewApplication()

	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true)
	list.SetTitle("Targets")

	detail := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	detail.SetBorder(true)
	detail.SetTitle("Dependencies")

	footer := tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetText("Up/Down: select   q/Esc: quit")

	showTarget := func(name string) {
		node, err := r.Lookup(name)
		if err != nil {
			detail.SetText(err.Error())
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "[yellow]%s[-]\n\n", name)

		var direct []string
		for dep := range node.DependencyNames() {
			direct = append(direct, dep)
		}
		sort.Strings(direct)
		if len(direct) == 0 {
			b.WriteString("Direct dependencies: none\n")
		} else {
			fmt.Fprintf(&b, "Direct dependencies: %s\n", strings.Join(direct, ", "))
		}

		closure, err := r.RecursiveDependencyNames(node)
		if err == nil {
			var all []string
			for dep := range closure {
				all = append(all, dep)
			}
			sort.Strings(all)
			if len(all) > 0 {
				fmt.Fprintf(&b, "Transitive closure: %s\n", strings.Join(all, ", "))
			}
		}
		detail.SetText(b.String())
	}

	names := r.Names()
	for _, name := range names {
		list.AddItem(name, "", 0, nil)
	}
	list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		showTarget(mainText)
	})
	if len(names) > 0 {
		showTarget(names[0])
	}

	flex := tview.NewFlex().
		AddItem(list, 30, 0, true).
		AddItem(detail, 0, 1, false)
	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(flex, 0, 1, true).
		AddItem(footer, 1, 0, false)

	root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	return app.SetRoot(root, true).Run()
}
