// Command studentperf trains and applies the student-performance model.
//
//	studentperf train --config studentperf.yaml --plot artifacts/report.png
//	studentperf predict --input new_students.csv --output predictions.csv
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
