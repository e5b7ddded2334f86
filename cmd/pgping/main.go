// pgping attempts a full connection bootstrap against the configured
// candidates and reports what was negotiated. Exit status 0 means a session
// came up and satisfied the role requirement.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pgv2/client"
	"pgv2/config"
)

func main() {
	flag.BoolVar(&client.Debug, "debug", false, "trace wire-level messages")
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("pgping: %v", err)
	}

	conn := client.New(cfg)
	start := time.Now()
	sess, err := conn.Connect()
	elapsed := time.Since(start)

	if err != nil {
		var ex *client.ExhaustedError
		if errors.As(err, &ex) {
			fmt.Fprintf(os.Stderr, "pgping: no candidate accepted the connection:\n")
			for _, f := range ex.Failures {
				fmt.Fprintf(os.Stderr, "  %s: [%s] %v\n", f.Spec, f.Class, f.Err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "pgping: %v\n", err)
		}
		os.Exit(1)
	}
	defer sess.Close()

	fmt.Printf("connected to %s in %v\n", sess.Host(), elapsed.Round(time.Millisecond))
	fmt.Printf("  server version:     %s\n", sess.ServerVersion)
	fmt.Printf("  session encoding:   %s\n", sess.Encoding)
	fmt.Printf("  conforming strings: %v\n", sess.StdStrings)
	fmt.Printf("  backend pid:        %d\n", sess.BackendPID)
	for _, w := range sess.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if snap := conn.Cache.Snapshot(); len(snap) > 0 {
		fmt.Println("host status:")
		for spec, st := range snap {
			fmt.Printf("  %s: %s\n", spec, st)
		}
	}
}
