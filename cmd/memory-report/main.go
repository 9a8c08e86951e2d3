package main

import (
	"flag"
	"log"
	"os"
	"syscall"

	"github.com/inhies/go-bytesize"
	"github.com/socketry/memory"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	verbose := flag.Bool("v", false, "Verbose")
	veryVerbose := flag.Bool("vv", false, "Very Verbose")
	groupBy := flag.String("group", "", "Group records by: module, type, file, location, value (default: full report)")
	retainedOnly := flag.Bool("retained", false, "Only include records that survived collection")
	rlimitString := flag.String("rlimit", "4GB", "RLimit")

	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		log.Fatal("Usage: memory-report path/to/records.db")
	}

	minLevel := memory.LogLevel_INFO
	if *verbose {
		minLevel = memory.LogLevel_DEBUG
	}
	if *veryVerbose {
		minLevel = memory.LogLevel_TRACE
	}
	logger := memory.NewLogger(minLevel)

	rlimitInt, err := bytesize.Parse(*rlimitString)
	if err != nil {
		log.Fatal(err)
	}
	var rLimit syscall.Rlimit
	err = syscall.Getrlimit(syscall.RLIMIT_AS, &rLimit)
	if err != nil {
		log.Fatal(err)
	}
	rLimit.Cur = uint64(rlimitInt)
	rLimit.Max = uint64(rlimitInt)
	err = syscall.Setrlimit(syscall.RLIMIT_AS, &rLimit)
	if err != nil {
		log.Fatal(err)
	}

	report := memory.DefaultReport()
	if *groupBy != "" {
		classifier := classifierFor(*groupBy)
		report = memory.NewReport(memory.NewAggregate("By "+*groupBy, classifier))
	}

	store, err := memory.OpenRecordStore(args[0])
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	count := 0
	err = store.Each(func(record memory.AllocationRecord) error {
		if *retainedOnly && !record.Retained {
			return nil
		}
		report.Record(record)
		count++
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	logger.Info("Loaded %v records from %v", count, args[0])
	report.Print(os.Stdout)
}

func classifierFor(name string) memory.Classifier {
	switch name {
	case "module":
		return memory.ByModule
	case "type":
		return memory.ByType
	case "file":
		return memory.ByFile
	case "location":
		return memory.ByLocation
	case "value":
		return memory.ByValue
	default:
		log.Fatalf("Unknown group: %v", name)
		return nil
	}
}
