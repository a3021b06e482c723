package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var facelistsCmd = &cobra.Command{
	Use:   "facelists",
	Short: "Manage face lists",
	Long:  `Create, delete and list face lists and add faces to them.`,
}

var facelistsCreateCmd = &cobra.Command{
	Use:   "create <list-id> <name>",
	Short: "Create a face list",
	Args:  cobra.ExactArgs(2),
	RunE:  runFacelistsCreate,
}

var facelistsDeleteCmd = &cobra.Command{
	Use:   "delete <list-id>",
	Short: "Delete a face list",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacelistsDelete,
}

var facelistsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List face lists",
	Args:  cobra.NoArgs,
	RunE:  runFacelistsList,
}

var facelistsAddFaceCmd = &cobra.Command{
	Use:   "add-face <list-id> <image>",
	Short: "Add a face image to a face list",
	Args:  cobra.ExactArgs(2),
	RunE:  runFacelistsAddFace,
}

func init() {
	rootCmd.AddCommand(facelistsCmd)
	facelistsCmd.AddCommand(facelistsCreateCmd, facelistsDeleteCmd, facelistsListCmd, facelistsAddFaceCmd)

	facelistsCreateCmd.Flags().String("user-data", "", "Optional user data stored with the list")
}

func runFacelistsCreate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	if err := client.CreateFaceList(context.Background(), args[0], args[1], mustGetString(cmd, "user-data")); err != nil {
		return err
	}
	fmt.Printf("Created face list %s\n", args[0])
	return nil
}

func runFacelistsDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	if err := client.DeleteFaceList(context.Background(), args[0]); err != nil {
		return describeNotFound(err, "face list %s", args[0])
	}
	fmt.Printf("Deleted face list %s\n", args[0])
	return nil
}

func runFacelistsList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	lists, err := client.ListFaceLists(context.Background())
	if err != nil {
		return err
	}
	return printJSON(lists)
}

func runFacelistsAddFace(cmd *cobra.Command, args []string) error {
	data, err := readFaceImage(args[1])
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	faceID, err := client.AddFaceListFace(context.Background(), args[0], data)
	if err != nil {
		return describeNotFound(err, "face list %s", args[0])
	}
	fmt.Printf("Added face %s to list %s\n", faceID, args[0])
	return nil
}
