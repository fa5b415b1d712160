// Package factory provides a small generic registry used to build pluggable
// modules, such as metrics sinks, from configuration. A module is named by a
// type string and a map of raw settings that its factory decodes with Decode.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	reg.Register("nop", func(map[string]any) (metrics.MetricsSink, error) {
//	    return metrics.NopSink{}, nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "nop"})
package factory
