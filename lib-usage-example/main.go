package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/syncer"
)

func main() {
	// Usage: go run *.go -key "your_nextdns_api_key" [-apply]

	keyFlag := flag.String("key", "", "NextDNS API key")
	applyFlag := flag.Bool("apply", false, "Apply the planned operations instead of a dry run")

	// Parse the command-line flags
	flag.Parse()

	if *keyFlag == "" {
		fmt.Println("API key is required. Please provide it using -key flag.")
		return
	}

	client, err := nextdns.NewClient(*keyFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()

	// Manage, diff and copy are driven the same way, see pkg/domains, pkg/profilediff and pkg/clone
	analysis, err := syncer.Analyze(ctx, client, syncer.Options{Delay: syncer.DefaultDelay})
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, op := range analysis.Operations(syncer.TargetBoth) {
		fmt.Println(op)
	}

	summary := syncer.Execute(ctx, client, analysis, syncer.Config{
		Target:     syncer.TargetBoth,
		DryRun:     !*applyFlag,
		Delay:      syncer.DefaultDelay,
		RetryDelay: syncer.DefaultRetryDelay,
		MaxRetries: syncer.DefaultMaxRetries,
	})
	fmt.Printf("added %d, updated %d, failed %d\n", summary.AddSuccess, summary.UpdateSuccess, summary.Failed())
}
