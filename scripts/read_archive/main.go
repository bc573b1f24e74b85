// Prints a group's archived messages, newest first.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/notedhq/noted/pkg/archive"
)

func main() {
	groupID := flag.Int64("group", 0, "group id")
	before := flag.Int64("before", 0, "return messages older than this id (0 for newest)")
	limit := flag.Int("limit", 50, "max messages")
	hosts := flag.String("hosts", "localhost:9042", "scylla host")
	flag.Parse()

	if *groupID == 0 {
		log.Fatal("-group is required")
	}

	session, err := archive.NewSession([]string{*hosts}, "chat")
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	events, err := archive.New(session).History(*groupID, *before, *limit)
	if err != nil {
		log.Fatal(err)
	}

	for _, ev := range events {
		fmt.Printf("%d %s %s: %s\n", ev.ID, ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Sender.Username, ev.Content)
	}
}
