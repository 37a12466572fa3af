package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cosarberk/flyapi"
)

type callOptions struct {
	body    string
	id      string
	params  []string
	metrics bool
}

func newCallCommand(o *options) *cobra.Command {
	co := &callOptions{}
	cmd := &cobra.Command{
		Use:   "call <category> <name>",
		Short: "Invoke one endpoint of the registry",
		Long: `Invoke one endpoint of the registry.

GET endpoints accept --param key=value. POST and PUT endpoints send --body
as the request body. DELETE endpoints require --id, which is appended to
the endpoint path.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runCall(ctx, o, co, args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&co.body, "body", "d", "", "Request body for POST and PUT endpoints")
	cmd.Flags().StringVar(&co.id, "id", "", "Resource id for DELETE endpoints")
	cmd.Flags().StringArrayVarP(&co.params, "param", "p", nil, "Query parameter key=value for GET endpoints (repeatable)")
	cmd.Flags().BoolVar(&co.metrics, "metrics", false, "Print request metrics after the call")
	return cmd
}

func runCall(ctx context.Context, o *options, co *callOptions, category, name string) error {
	fc, err := o.loadConfig()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := flyapi.NewMetricsCollectorWithRegistry(registry)
	logger := flyapi.NewLogrusLogger(o.logger())

	client, err := flyapi.NewFromConfig(fc.Network,
		flyapi.WithLogger(logger),
		flyapi.WithMetricsCollector(collector),
	)
	if err != nil {
		return err
	}
	state := flyapi.NewState()
	if err := state.ConfigureApisWithClient(fc.Registry(), client); err != nil {
		return err
	}

	provider := flyapi.NewProvider(nil, flyapi.WithQueryLogger(logger), flyapi.WithQueryMetrics(collector))
	err = provider.Run(ctx, func(ctx context.Context) error {
		apis, err := state.UseApis(ctx, category)
		if err != nil {
			return err
		}
		hook, ok := apis[name]
		if !ok {
			return fmt.Errorf("endpoint %q not found in category %q", name, category)
		}

		var data json.RawMessage
		switch h := hook.(type) {
		case *flyapi.QueryHook:
			params, err := parseParams(co.params)
			if err != nil {
				return err
			}
			st := h.UseWithParams(ctx, params)
			if st.Err != nil {
				return st.Err
			}
			data = st.Data
		case *flyapi.MutationHook:
			var vars any
			if h.Method() == flyapi.MethodDelete {
				if co.id == "" {
					return fmt.Errorf("--id is required for DELETE endpoints")
				}
				vars = co.id
			} else if co.body != "" {
				if !json.Valid([]byte(co.body)) {
					return fmt.Errorf("--body is not valid JSON")
				}
				vars = json.RawMessage(co.body)
			}
			data, err = h.Use().Mutate(ctx, vars)
			if err != nil {
				return err
			}
		}
		return writeData(o, data)
	})

	if co.metrics {
		if merr := writeMetrics(o, registry); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

func parseParams(raw []string) (url.Values, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	values := make(url.Values, len(raw))
	for _, p := range raw {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		values.Add(key, value)
	}
	return values, nil
}

func writeData(o *options, data json.RawMessage) error {
	if len(data) == 0 {
		fmt.Fprintln(o.out, "OK")
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		// not JSON, print as received
		fmt.Fprintln(o.out, string(data))
		return nil
	}
	fmt.Fprintln(o.out, buf.String())
	return nil
}

func writeMetrics(o *options, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	w := tabwriter.NewWriter(o.errOut, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tLABELS\tVALUE")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return w.Flush()
}
