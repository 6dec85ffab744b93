package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/internal/rpc"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func watchCmd(addr *string) *cobra.Command {
	var maxTries uint
	cmd := &cobra.Command{
		Use:   "watch IFNAME",
		Short: "Stream interface events, reconnecting when the stream drops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClients(*addr, func(c *clients) error {
				err := watch(cmd.Context(), c.iface, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr(), maxTries)
				if cmd.Context().Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().UintVar(&maxTries, "max-tries", 0, "Give up after this many stream attempts, 0 retries forever")
	return cmd
}

// watch registers a callback stream for ifname and prints events until
// ctx ends or the stream fails permanently. Being replaced by another
// callback, or a malformed request, ends the watch without retrying.
func watch(ctx context.Context, client *p2pv1.P2PIfaceClient, ifname string, out, errOut io.Writer, maxTries uint) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		stream, err := client.RegisterCallback(ctx, &p2pv1.IfaceRequest{Ifname: ifname})
		if err != nil {
			return struct{}{}, classify(err)
		}
		for {
			ev, err := stream.Recv()
			if err != nil {
				return struct{}{}, classify(err)
			}
			printEvent(out, ev)
		}
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			fmt.Fprintf(errOut, "stream lost: %v (retrying in %s)\n", err, next.Round(time.Millisecond))
		}),
	)
	return err
}

// classify marks errors that a reconnect cannot fix as permanent.
func classify(err error) error {
	if errors.Is(err, io.EOF) {
		return err
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Canceled, codes.Unimplemented:
		return backoff.Permanent(err)
	case codes.Aborted:
		if rpc.ReasonOf(err) == rpc.ReasonCallbackReplaced {
			return backoff.Permanent(err)
		}
	}
	return err
}

func printEvent(w io.Writer, ev *p2pv1.Event) {
	var b strings.Builder
	if ev.At != nil {
		b.WriteString(ev.At.AsTime().UTC().Format(time.RFC3339Nano))
		b.WriteByte(' ')
	}
	b.WriteString(ev.Type)
	if len(ev.PeerAddress) > 0 {
		fmt.Fprintf(&b, " peer=%s", formatMac(ev.PeerAddress))
	}
	if ev.NetworkID != 0 {
		fmt.Fprintf(&b, " network=%d", ev.NetworkID)
	}
	if d := ev.Device; d != nil {
		fmt.Fprintf(&b, " name=%q", d.DeviceName)
	}
	if g := ev.Group; g != nil {
		fmt.Fprintf(&b, " group=%s ssid=%q freq=%d go=%t", g.Ifname, g.Ssid, g.Frequency, g.GroupOwner)
	}
	if p := ev.Provision; p != nil && p.GeneratedPin != "" {
		fmt.Fprintf(&b, " pin=%s", p.GeneratedPin)
	}
	if r := ev.ServiceResponse; r != nil {
		fmt.Fprintf(&b, " request=%d tlvs=%d", r.RequestID, len(r.Tlvs))
	}
	if ev.Status != 0 {
		fmt.Fprintf(&b, " status=%d", ev.Status)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, " reason=%q", ev.Reason)
	}
	fmt.Fprintln(w, b.String())
}
