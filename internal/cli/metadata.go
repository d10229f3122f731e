package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/canvas-graph/internal/model"
)

func init() {
	metaCmd := &cobra.Command{
		Use:   "metadata",
		Short: "Link metadata cache",
	}

	putCmd := &cobra.Command{
		Use:   "put [url]",
		Short: "Cache page metadata for a link",
		Args:  cobra.ExactArgs(1),
		Run:   runMetadataPut,
	}
	putCmd.Flags().StringP("title", "t", "", "Page title")
	putCmd.Flags().String("description", "", "Page description")
	putCmd.Flags().String("author", "", "Author")
	putCmd.Flags().String("site", "", "Site name")
	putCmd.Flags().String("platform", "", "Platform")
	putCmd.Flags().String("published", "", "Publication date")

	getCmd := &cobra.Command{
		Use:   "get [url]",
		Short: "Show unexpired metadata for a link",
		Args:  cobra.ExactArgs(1),
		Run:   runMetadataGet,
	}

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete expired metadata",
		Run:   runMetadataClean,
	}

	metaCmd.AddCommand(putCmd, getCmd, cleanCmd)
	RootCmd.AddCommand(metaCmd)
}

func runMetadataPut(cmd *cobra.Command, args []string) {
	m := model.LinkMetadata{URL: args[0]}
	m.Title, _ = cmd.Flags().GetString("title")
	m.Description, _ = cmd.Flags().GetString("description")
	m.Author, _ = cmd.Flags().GetString("author")
	m.SiteName, _ = cmd.Flags().GetString("site")
	m.Platform, _ = cmd.Flags().GetString("platform")
	m.PublishedAt, _ = cmd.Flags().GetString("published")

	a, ctx := openApp(cmd)
	defer a.Close()

	out, err := a.svc.PutLinkMetadata(ctx, m)
	if err != nil {
		exitErr("put metadata", err)
	}
	printJSON(out)
}

func runMetadataGet(cmd *cobra.Command, args []string) {
	a, ctx := openApp(cmd)
	defer a.Close()

	m, err := a.svc.GetLinkMetadata(ctx, args[0])
	if err != nil {
		exitErr("get metadata", err)
	}
	printJSON(m)
}

func runMetadataClean(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.CleanExpiredLinkMetadata(cmd.Context())
	if err != nil {
		exitErr("clean metadata", err)
	}
	fmt.Printf(`{"ok":true,"deleted":%d}`+"\n", n)
}
