package main

import (
	"log"

	"github.com/gocql/gocql"
	"github.com/notedhq/noted/pkg/archive"
)

func main() {
	cluster := gocql.NewCluster("localhost")
	cluster.Keyspace = "chat"
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	if err := session.Query(archive.Table).Exec(); err != nil {
		log.Fatal(err)
	}

	log.Println("Table messages created successfully")
}
