package statestore

import "fmt"

const _defaultPrefix = "pipeline"

func circuitKey(prefix, name string) string {
	return fmt.Sprintf("%s:circuit:%s", prefix, name)
}

func circuitIndexKey(prefix string) string {
	return fmt.Sprintf("%s:circuits", prefix)
}

func bulkheadKey(prefix, name string) string {
	return fmt.Sprintf("%s:bulkhead:%s:usage", prefix, name)
}
