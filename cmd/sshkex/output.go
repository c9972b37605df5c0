package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/probe"
)

type jsonResult struct {
	*probe.Result
	NegotiationError string `json:"negotiation_error,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorKind        string `json:"error_kind,omitempty"`
	ErrorField       string `json:"error_field,omitempty"`
	BytesSent        uint64 `json:"bytes_sent"`
	BytesReceived    uint64 `json:"bytes_received"`
	DurationMillis   int64  `json:"duration_ms"`
}

// writeJSON prints one JSON object per result.
func writeJSON(w io.Writer, results []*probe.Result) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		out := jsonResult{
			Result:         res,
			BytesSent:      res.Stats.BytesSent,
			BytesReceived:  res.Stats.BytesReceived,
			DurationMillis: res.Stats.Duration.Milliseconds(),
		}
		if res.NegotiationErr != nil {
			out.NegotiationError = res.NegotiationErr.Error()
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
			out.ErrorKind = qerrors.Kind(res.Err)
			out.ErrorField = qerrors.Field(res.Err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

// writeText prints a human-readable block per result.
func writeText(w io.Writer, results []*probe.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\n", res.Target)
		if res.Err != nil {
			fmt.Fprintf(tw, "  error\t%v\n", res.Err)
			fmt.Fprintf(tw, "  kind\t%s\n", qerrors.Kind(res.Err))
			if res.ServerBanner != nil {
				fmt.Fprintf(tw, "  banner\t%s\n", res.ServerBanner)
			}
			continue
		}

		fmt.Fprintf(tw, "  banner\t%s\n", res.ServerBanner)
		fmt.Fprintf(tw, "  hassh server\t%s\n", res.HASSHServer)
		if res.Changed {
			fmt.Fprintf(tw, "  changed\tyes\n")
		}
		for _, field := range res.KexInit.Fields() {
			fmt.Fprintf(tw, "  %s\t%s\n", field.Field, field.Names)
		}
		fmt.Fprintf(tw, "  first_kex_packet_follows\t%t\n", res.KexInit.FirstKexFollows)

		if res.NegotiationErr != nil {
			fmt.Fprintf(tw, "  negotiation\t%v\n", res.NegotiationErr)
			continue
		}
		a := res.Algorithms
		fmt.Fprintf(tw, "  negotiated kex\t%s\n", a.Kex)
		fmt.Fprintf(tw, "  negotiated host key\t%s\n", a.HostKey)
		fmt.Fprintf(tw, "  negotiated cipher\t%s / %s\n", a.CipherClientServer, a.CipherServerClient)
		if a.MACClientServer != "" || a.MACServerClient != "" {
			fmt.Fprintf(tw, "  negotiated mac\t%s / %s\n", a.MACClientServer, a.MACServerClient)
		}
		fmt.Fprintf(tw, "  negotiated compression\t%s / %s\n", a.CompressionClientServer, a.CompressionServerClient)
	}
	return tw.Flush()
}
