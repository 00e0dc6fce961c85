package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/josephleblanc/crategraph/internal/graph"
)

type dumpNode struct {
	ID            string `yaml:"id" json:"id"`
	Kind          string `yaml:"kind" json:"kind"`
	Name          string `yaml:"name" json:"name"`
	CanonicalPath string `yaml:"path,omitempty" json:"path,omitempty"`
	File          string `yaml:"file" json:"file"`
	Visibility    string `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	LogicalType   string `yaml:"logical_type,omitempty" json:"logical_type,omitempty"`
	Doc           string `yaml:"doc,omitempty" json:"doc,omitempty"`
}

type dumpRelation struct {
	Source         string `yaml:"source" json:"source"`
	Target         string `yaml:"target" json:"target"`
	Kind           string `yaml:"kind" json:"kind"`
	UnresolvedPath string `yaml:"unresolved_path,omitempty" json:"unresolved_path,omitempty"`
}

type dumpDoc struct {
	Nodes     []dumpNode     `yaml:"nodes" json:"nodes"`
	Relations []dumpRelation `yaml:"relations" json:"relations"`
}

func newDumpCmd(flags *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Build the graph and write it to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runPipeline(cmd.Context(), flags)
			if err != nil {
				return err
			}
			reportParseErrors(cmd, res)

			doc := buildDump(res.Graph)
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(doc)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			default:
				return fmt.Errorf("unknown format %q (yaml, json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

func buildDump(g *graph.CodeGraph) *dumpDoc {
	doc := &dumpDoc{}
	for _, n := range g.Nodes() {
		d := dumpNode{
			ID:            n.ID.String(),
			Kind:          n.Kind.String(),
			Name:          n.Name,
			CanonicalPath: strings.Join(n.CanonicalPath, "::"),
			File:          n.FilePath,
			Doc:           n.Doc,
		}
		if n.Vis.Kind == graph.VisPublic {
			d.Visibility = "pub"
		}
		if !n.Logical.IsZero() {
			d.LogicalType = n.Logical.String()
		}
		doc.Nodes = append(doc.Nodes, d)
	}
	for _, r := range g.Relations {
		doc.Relations = append(doc.Relations, dumpRelation{
			Source:         refString(r.Source),
			Target:         refString(r.Target),
			Kind:           string(r.Kind),
			UnresolvedPath: r.UnresolvedPath,
		})
	}
	return doc
}

func refString(r graph.Ref) string {
	if r.IsNode() {
		return r.Node.String()
	}
	return r.Type.String()
}

func newUnresolvedCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unresolved",
		Short: "Build the graph and list references left unresolved",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runPipeline(cmd.Context(), flags)
			if err != nil {
				return err
			}
			reportParseErrors(cmd, res)

			for _, p := range res.Resolution.Unresolved {
				cmd.Printf("%-12s %s  (%s)\n",
					p.Kind.String(), strings.Join(p.Path, "::"), p.FilePath)
			}
			cmd.Printf("%d unresolved references\n", len(res.Resolution.Unresolved))
			return nil
		},
	}
	return cmd
}
