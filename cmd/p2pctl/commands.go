package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"github.com/spf13/cobra"
)

func interfacesCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interfaces",
		Aliases: []string{"ifaces"},
		Short:   "List managed P2P interfaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClients(*addr, func(c *clients) error {
				resp, err := c.mgr.ListInterfaces(cmd.Context())
				if err != nil {
					return err
				}
				for _, info := range resp.Interfaces {
					printInterface(cmd, info)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add IFNAME",
		Short: "Bring up a P2P interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClients(*addr, func(c *clients) error {
				info, err := c.mgr.AddInterface(cmd.Context(), &p2pv1.IfaceRequest{Ifname: args[0]})
				if err != nil {
					return err
				}
				printInterface(cmd, info)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove IFNAME",
		Short: "Tear down a P2P interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClients(*addr, func(c *clients) error {
				_, err := c.mgr.RemoveInterface(cmd.Context(), &p2pv1.IfaceRequest{Ifname: args[0]})
				return err
			})
		},
	})
	return cmd
}

func printInterface(cmd *cobra.Command, info *p2pv1.InterfaceInfo) {
	callback := "-"
	if info.HasCallback {
		callback = "callback"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", info.Ifname, info.Type, formatMac(info.DeviceAddress), callback)
}

func findCmd(addr *string) *cobra.Command {
	var timeout uint32
	cmd := &cobra.Command{
		Use:   "find IFNAME",
		Short: "Start peer discovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClients(*addr, func(c *clients) error {
				_, err := c.iface.Find(cmd.Context(), &p2pv1.FindRequest{Ifname: args[0], TimeoutSec: timeout})
				return err
			})
		},
	}
	cmd.Flags().Uint32Var(&timeout, "timeout", 0, "Discovery timeout in seconds, 0 searches until stop-find")
	return cmd
}

func stopFindCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-find IFNAME",
		Short: "Stop peer discovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClients(*addr, func(c *clients) error {
				_, err := c.iface.StopFind(cmd.Context(), &p2pv1.IfaceRequest{Ifname: args[0]})
				return err
			})
		},
	}
}

func connectCmd(addr *string) *cobra.Command {
	var (
		method     string
		pin        string
		join       bool
		persistent bool
		goIntent   uint32
	)
	cmd := &cobra.Command{
		Use:   "connect IFNAME PEER",
		Short: "Connect to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, err := model.ParseMacAddr(args[1])
			if err != nil {
				return err
			}
			return withClients(*addr, func(c *clients) error {
				resp, err := c.iface.Connect(cmd.Context(), &p2pv1.ConnectRequest{
					Ifname:            args[0],
					PeerAddress:       peer.Bytes(),
					ProvisionMethod:   method,
					PreSelectedPin:    pin,
					JoinExistingGroup: join,
					Persistent:        persistent,
					GoIntent:          goIntent,
				})
				if err != nil {
					return err
				}
				if len(resp.GeneratedPin) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "pin %s\n", resp.GeneratedPin)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", "pbc", "Provisioning method: pbc, display or keypad")
	cmd.Flags().StringVar(&pin, "pin", "", "Pre-selected PIN, empty generates one for display")
	cmd.Flags().BoolVar(&join, "join", false, "Join the peer's existing group")
	cmd.Flags().BoolVar(&persistent, "persistent", false, "Form a persistent group")
	cmd.Flags().Uint32Var(&goIntent, "go-intent", 7, "Group owner intent (0-15)")
	return cmd
}

func networksCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks IFNAME",
		Short: "List network profiles of an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClients(*addr, func(c *clients) error {
				resp, err := c.iface.ListNetworks(cmd.Context(), &p2pv1.IfaceRequest{Ifname: args[0]})
				if err != nil {
					return err
				}
				for _, id := range resp.NetworkIDs {
					info, err := c.iface.GetNetwork(cmd.Context(), &p2pv1.NetworkRequest{Ifname: args[0], NetworkID: id})
					if err != nil {
						return err
					}
					printNetwork(cmd, info)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add IFNAME",
		Short: "Allocate an empty network profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClients(*addr, func(c *clients) error {
				info, err := c.iface.AddNetwork(cmd.Context(), &p2pv1.IfaceRequest{Ifname: args[0]})
				if err != nil {
					return err
				}
				printNetwork(cmd, info)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove IFNAME ID",
		Short: "Remove a network profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("network id %q: %w", args[1], err)
			}
			return withClients(*addr, func(c *clients) error {
				_, err := c.iface.RemoveNetwork(cmd.Context(), &p2pv1.NetworkRequest{Ifname: args[0], NetworkID: uint32(id)})
				return err
			})
		},
	})
	return cmd
}

func printNetwork(cmd *cobra.Command, info *p2pv1.NetworkInfo) {
	flags := ""
	if info.Persistent {
		flags += "[PERSISTENT]"
	}
	if info.GroupOwner {
		flags += "[GO]"
	}
	if info.Current {
		flags += "[CURRENT]"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\t%q\t%s\t%s\n", info.NetworkID, info.Ssid, formatMac(info.Bssid), flags)
}

func sdRequestCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sd-request IFNAME PEER QUERY_HEX",
		Short: "Send a service discovery query, PEER 00:00:00:00:00:00 asks every peer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, err := model.ParseMacAddr(args[1])
			if err != nil {
				return err
			}
			query, err := hex.DecodeString(args[2])
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			return withClients(*addr, func(c *clients) error {
				resp, err := c.iface.RequestServiceDiscovery(cmd.Context(), &p2pv1.ServiceDiscoveryRequest{
					Ifname:      args[0],
					PeerAddress: peer.Bytes(),
					Query:       query,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.RequestID)
				return nil
			})
		},
	}
}

func sdCancelCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sd-cancel IFNAME ID",
		Short: "Cancel a service discovery request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("request id %q: %w", args[1], err)
			}
			return withClients(*addr, func(c *clients) error {
				_, err := c.iface.CancelServiceDiscovery(cmd.Context(), &p2pv1.ServiceDiscoveryID{Ifname: args[0], RequestID: id})
				return err
			})
		},
	}
}

func formatMac(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	m, err := model.MacAddrFromBytes(b)
	if err != nil {
		return hex.EncodeToString(b)
	}
	return m.String()
}
