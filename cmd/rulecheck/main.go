package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"celestetracker.ai/internal/persistence/dpcache"
	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/reconcile"
	"celestetracker.ai/internal/tracker/rules"
)

func main() {
	var (
		rulesPath   = flag.String("rules", "", "rules document (json)")
		catalogPath = flag.String("catalog", "", "objective catalog yaml (default: built-in)")
		dpDir       = flag.String("dp_dir", "", "data package cache dir (optional, with -url)")
		url         = flag.String("url", "ws://localhost:38281", "server url whose cached data package to reconcile")
		verbose     = flag.Bool("v", false, "list every translated objective")
	)
	flag.Parse()

	cat, err := loadCatalog(*catalogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalog:", err)
		os.Exit(1)
	}
	fmt.Printf("catalog objectives=%d\n", cat.Len())

	if *rulesPath != "" {
		doc, err := rules.Load(*rulesPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load rules:", err)
			os.Exit(1)
		}
		reportRules(doc, cat, *verbose)
	}

	if *dpDir != "" {
		data, h, ok, err := dpcache.New(*dpDir).Load(*url)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load data package:", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "no cached data package for %s\n", *url)
			os.Exit(1)
		}
		fmt.Printf("data package url=%s checksum=%s saved_at=%s\n", h.URL, h.Checksum, h.SavedAt)
		res := reconcile.Reconcile(cat.Entries, data.LocationNameToID, data.ItemNameToID)
		fmt.Printf("reconcile matched=%d unmatched_server=%d unmatched_local=%d unknown_items=%d\n",
			len(res.Map.LocationToKey), len(res.UnmatchedServer), len(res.UnmatchedLocal), len(res.UnknownItems))
		printList("unmatched server location", res.UnmatchedServer)
		printList("unmatched local objective", res.UnmatchedLocal)
		printList("unknown item", res.UnknownItems)
	}

	if *rulesPath == "" && *dpDir == "" {
		fmt.Fprintln(os.Stderr, "nothing to check: pass -rules and/or -dp_dir")
		os.Exit(2)
	}
}

func reportRules(doc rules.Document, cat *catalog.Catalog, verbose bool) {
	tr := rules.Translate(doc, cat)

	var outside []string
	for _, lvl := range doc.Levels {
		for _, room := range lvl.Rooms {
			for _, reg := range room.Regions {
				for _, loc := range reg.Locations {
					name := rules.ExternalName(lvl.DisplayName, room.Name, loc)
					if _, ok := cat.LookupName(name); !ok {
						outside = append(outside, name)
					}
				}
			}
		}
	}
	sort.Strings(outside)

	var uncovered []string
	for _, e := range cat.Entries {
		if _, ok := tr.Keys[e.ExternalName]; !ok {
			uncovered = append(uncovered, e.ExternalName)
		}
	}

	fmt.Printf("rules translated=%d inherited=%d unmapped_mechanics=%d outside_catalog=%d without_rule=%d\n",
		len(tr.Keys), len(tr.Inherited), len(tr.Unmapped), len(outside), len(uncovered))
	printList("unmapped mechanic", tr.Unmapped)
	printList("outside catalog", outside)
	if verbose {
		printList("inherited", tr.Inherited)
		printList("without rule", uncovered)
		names := make([]string, 0, len(tr.Keys))
		for n := range tr.Keys {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("  %s: %s\n", n, strings.Join(tr.Keys[n], " & "))
		}
	}
}

func printList(label string, items []string) {
	for _, it := range items {
		fmt.Printf("  %s: %s\n", label, it)
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
