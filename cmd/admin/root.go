// Package admin provides one-off CLI commands that reach a running
// storage node directly over the same rpc/transport + rpc/serializer
// stack cmd/serve listens on, to drive the shard admin interface
// (spec.md §6.2) that lib/graph/shard.Shard exposes: index
// creation/removal, schema installation, and info reporting.
package admin

import (
	"encoding/json"
	"fmt"

	cmdUtil "github.com/shardgraph/shardgraph/cmd/util"
	"github.com/shardgraph/shardgraph/lib/graph/nameid"
	"github.com/shardgraph/shardgraph/lib/graph/schema"
	"github.com/shardgraph/shardgraph/lib/value"
	"github.com/shardgraph/shardgraph/rpc/common"
	"github.com/shardgraph/shardgraph/rpc/node"
	"github.com/spf13/cobra"
)

// AdminCmd is the "shardgraph admin" command group.
var AdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administer a running shardgraph storage node",
}

func init() {
	AdminCmd.AddCommand(createLabelIndexCmd)
	AdminCmd.AddCommand(dropLabelIndexCmd)
	AdminCmd.AddCommand(createPropertyIndexCmd)
	AdminCmd.AddCommand(dropPropertyIndexCmd)
	AdminCmd.AddCommand(setSchemaCmd)
	AdminCmd.AddCommand(infoCmd)

	for _, c := range AdminCmd.Commands() {
		cmdUtil.SetupRPCClientFlags(c)
		c.Flags().String("shard", "", cmdUtil.WrapString("uuid of the target shard"))
		c.Flags().String("serializer", "json", cmdUtil.WrapString("serializer to use (json)"))
		c.Flags().String("transport", "tcp", cmdUtil.WrapString("transport to use (tcp)"))
		_ = c.MarkFlagRequired("shard")
	}

	createLabelIndexCmd.Flags().Uint32("label", 0, "label id to index")
	dropLabelIndexCmd.Flags().Uint32("label", 0, "label id whose index to drop")
	createPropertyIndexCmd.Flags().Uint32("label", 0, "label id the property belongs to")
	createPropertyIndexCmd.Flags().Uint32("property", 0, "property id to index")
	dropPropertyIndexCmd.Flags().Uint32("label", 0, "label id the property belongs to")
	dropPropertyIndexCmd.Flags().Uint32("property", 0, "property id whose index to drop")
	setSchemaCmd.Flags().String("properties", "", cmdUtil.WrapString("comma-separated propertyID:type primary-key schema, e.g. 1:int,2:string"))
}

var createLabelIndexCmd = &cobra.Command{
	Use:   "create-label-index",
	Short: "Create a label index on a shard",
	RunE: withAdminRequest(func(cmd *cobra.Command) (node.AdminRequest, error) {
		label, _ := cmd.Flags().GetUint32("label")
		return node.AdminRequest{Op: node.OpCreateLabelIndex, Label: nameid.LabelID(label)}, nil
	}),
}

var dropLabelIndexCmd = &cobra.Command{
	Use:   "drop-label-index",
	Short: "Drop a label index on a shard",
	RunE: withAdminRequest(func(cmd *cobra.Command) (node.AdminRequest, error) {
		label, _ := cmd.Flags().GetUint32("label")
		return node.AdminRequest{Op: node.OpDropLabelIndex, Label: nameid.LabelID(label)}, nil
	}),
}

var createPropertyIndexCmd = &cobra.Command{
	Use:   "create-property-index",
	Short: "Create a label+property index on a shard",
	RunE: withAdminRequest(func(cmd *cobra.Command) (node.AdminRequest, error) {
		label, _ := cmd.Flags().GetUint32("label")
		prop, _ := cmd.Flags().GetUint32("property")
		return node.AdminRequest{Op: node.OpCreatePropertyIndex, Label: nameid.LabelID(label), Property: nameid.PropertyID(prop)}, nil
	}),
}

var dropPropertyIndexCmd = &cobra.Command{
	Use:   "drop-property-index",
	Short: "Drop a label+property index on a shard",
	RunE: withAdminRequest(func(cmd *cobra.Command) (node.AdminRequest, error) {
		label, _ := cmd.Flags().GetUint32("label")
		prop, _ := cmd.Flags().GetUint32("property")
		return node.AdminRequest{Op: node.OpDropPropertyIndex, Label: nameid.LabelID(label), Property: nameid.PropertyID(prop)}, nil
	}),
}

var setSchemaCmd = &cobra.Command{
	Use:   "set-schema",
	Short: "Install a primary-key schema on a shard",
	RunE: withAdminRequest(func(cmd *cobra.Command) (node.AdminRequest, error) {
		raw, _ := cmd.Flags().GetString("properties")
		props, err := parseProperties(raw)
		if err != nil {
			return node.AdminRequest{}, err
		}
		return node.AdminRequest{Op: node.OpSetSchema, Properties: props}, nil
	}),
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print vertex/edge counts for a shard",
	RunE: withAdminRequest(func(*cobra.Command) (node.AdminRequest, error) {
		return node.AdminRequest{Op: node.OpInfo}, nil
	}),
}

// parseProperties parses "propertyID:type,..." into schema.Property values.
func parseProperties(raw string) ([]schema.Property, error) {
	if raw == "" {
		return nil, nil
	}
	var out []schema.Property
	for _, entry := range splitNonEmpty(raw, ',') {
		parts := splitNonEmpty(entry, ':')
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid property entry %q (expected propertyID:type)", entry)
		}
		var propID uint32
		if _, err := fmt.Sscanf(parts[0], "%d", &propID); err != nil {
			return nil, fmt.Errorf("invalid property id %q: %w", parts[0], err)
		}
		kind, err := parseKind(parts[1])
		if err != nil {
			return nil, err
		}
		out = append(out, schema.Property{PropertyID: nameid.PropertyID(propID), Type: kind})
	}
	return out, nil
}

func parseKind(s string) (value.Kind, error) {
	switch s {
	case "bool":
		return value.KindBool, nil
	case "int":
		return value.KindInt, nil
	case "float":
		return value.KindFloat, nil
	case "string":
		return value.KindString, nil
	default:
		return 0, fmt.Errorf("invalid property type %q (expected bool, int, float, or string)", s)
	}
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// withAdminRequest wraps a request builder into a cobra RunE that binds
// flags, connects to the target shard, sends the built AdminRequest, and
// prints its response.
func withAdminRequest(build func(cmd *cobra.Command) (node.AdminRequest, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if err := cmdUtil.BindCommandFlags(cmd); err != nil {
			return err
		}
		cmdUtil.InitClientConfig()

		shardRaw, _ := cmd.Flags().GetString("shard")
		shardUUID, err := cmdUtil.ParseShardUUID(shardRaw)
		if err != nil {
			return err
		}

		req, err := build(cmd)
		if err != nil {
			return err
		}
		payload, err := node.EncodeAdminRequest(req)
		if err != nil {
			return err
		}

		s, err := cmdUtil.GetSerializer()
		if err != nil {
			return err
		}
		t, err := cmdUtil.GetClientTransport()
		if err != nil {
			return err
		}
		if err := t.Connect(*cmdUtil.GetClientConfig()); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer func() { _ = t.Close() }()

		reqMsg := common.NewRouteRequest(1, shardUUID, payload)
		raw, err := s.Serialize(*reqMsg)
		if err != nil {
			return err
		}
		respRaw, err := t.Send(shardUUID, raw)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		var respMsg common.Message
		if err := s.Deserialize(respRaw, &respMsg); err != nil {
			return err
		}
		if !respMsg.Ok {
			return fmt.Errorf("shard rejected request: %s", respMsg.Err)
		}

		adminResp, err := node.DecodeAdminResponse(respMsg.Payload)
		if err != nil {
			return err
		}
		if !adminResp.Ok {
			return fmt.Errorf("admin op failed: %s", adminResp.Err)
		}
		if adminResp.Info != nil {
			out, _ := json.MarshalIndent(adminResp.Info, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println("ok")
		}
		return nil
	}
}
