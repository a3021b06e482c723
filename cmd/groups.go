package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage person groups",
	Long:  `Create, delete, list and train the person groups faces are identified against.`,
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create <group-id> <name>",
	Short: "Create a person group",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroupsCreate,
}

var groupsDeleteCmd = &cobra.Command{
	Use:   "delete <group-id>",
	Short: "Delete a person group and all its persons",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsDelete,
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List person groups",
	Args:  cobra.NoArgs,
	RunE:  runGroupsList,
}

var groupsTrainCmd = &cobra.Command{
	Use:   "train [group-id]",
	Short: "Start training a person group",
	Long: `Queue training of a person group. Identification only sees faces added
before the last successful training. Use --wait to poll until training ends.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGroupsTrain,
}

var groupsStatusCmd = &cobra.Command{
	Use:   "status [group-id]",
	Short: "Show the training status of a person group",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGroupsStatus,
}

func init() {
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsCreateCmd, groupsDeleteCmd, groupsListCmd, groupsTrainCmd, groupsStatusCmd)

	groupsCreateCmd.Flags().String("user-data", "", "Optional user data stored with the group")
	groupsTrainCmd.Flags().Bool("wait", false, "Wait until training succeeds or fails")
}

// groupArg returns the first argument or FACE_GROUP_ID.
func groupArg(defaultGroup string, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultGroup
}

func runGroupsCreate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	if err := client.CreatePersonGroup(context.Background(), args[0], args[1], mustGetString(cmd, "user-data")); err != nil {
		return err
	}
	fmt.Printf("Created person group %s\n", args[0])
	return nil
}

func runGroupsDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	if err := client.DeletePersonGroup(context.Background(), args[0]); err != nil {
		return describeNotFound(err, "person group %s", args[0])
	}
	fmt.Printf("Deleted person group %s\n", args[0])
	return nil
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	groups, err := client.ListPersonGroups(context.Background())
	if err != nil {
		return err
	}
	return printJSON(groups)
}

func runGroupsTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	groupID := groupArg(cfg.FaceAPI.GroupID, args)
	if err := client.TrainPersonGroup(ctx, groupID); err != nil {
		return describeNotFound(err, "person group %s", groupID)
	}
	fmt.Printf("Training of %s queued\n", groupID)
	if !mustGetBool(cmd, "wait") {
		return nil
	}

	for {
		status, err := client.GetTrainingStatus(ctx, groupID)
		if err != nil {
			return err
		}
		switch status.Status {
		case "succeeded":
			fmt.Println("Training succeeded")
			return nil
		case "failed":
			return fmt.Errorf("training failed: %s", status.Message)
		}
		time.Sleep(2 * time.Second)
	}
}

func runGroupsStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return err
	}

	groupID := groupArg(cfg.FaceAPI.GroupID, args)
	status, err := client.GetTrainingStatus(context.Background(), groupID)
	if err != nil {
		return describeNotFound(err, "person group %s", groupID)
	}
	return printJSON(status)
}
