package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"flowvc/internal/app"
	"flowvc/internal/config"
	"flowvc/internal/vc"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Commit", "PushRun").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "flowvc",
	Short: "Workflow file version control and git sync engine",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		serverID := uuid.New().String()
		cfg := config.NewConfig(serverID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Server ID: %s\n", serverID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Server ID: %s\n", cfg.ServerID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Archive:   %s\n", cfg.Archive.Type)
		fmt.Printf("Transport: %s\n", cfg.Git.Type)
		return nil
	},
}

var configCredentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Store encrypted git credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		token, _ := cmd.Flags().GetString("token")
		sshKey, _ := cmd.Flags().GetString("ssh-key")

		a, err := newApp("SetupCredentials")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		creds := vc.Credentials{Username: username, Token: token, SSHKeyPath: sshKey}
		if err := a.SetupCredentials(passphrase, creds); err != nil {
			a.MarkError()
			return fmt.Errorf("storing credentials: %w", err)
		}

		fmt.Println("Credentials stored.")
		return nil
	},
}

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoURL, _ := cmd.Flags().GetString("repo")
		remoteBranch, _ := cmd.Flags().GetString("remote-branch")
		sync, _ := cmd.Flags().GetBool("sync")

		a, err := newApp("CreateProject")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		project, err := a.CreateProject(args[0], repoURL, remoteBranch, sync)
		if err != nil {
			a.MarkError()
			return fmt.Errorf("creating project: %w", err)
		}

		fmt.Printf("Project %s created (%s)\n", project.Name, project.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListProjects")
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.ListProjects()
		if err != nil {
			return err
		}

		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}

		for _, p := range projects {
			sync := " "
			if p.SyncEnabled {
				sync = "S"
			}
			fmt.Printf("%s %s  %-20s  %s\n", sync, p.ID, p.Name, p.RepoURL)
		}
		return nil
	},
}

// branch command
var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Manage branches",
}

var branchUserCmd = &cobra.Command{
	Use:   "user PROJECT USER_ID",
	Short: "Resolve (or create) a user's working branch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("UserBranch")
		if err != nil {
			return err
		}
		defer a.Close()

		branch, err := a.UserBranch(args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("%s  %s  head:%s\n", branch.ID, branch.Name, shortID(branch.HeadCommitID))
		return nil
	},
}

var branchListCmd = &cobra.Command{
	Use:   "list PROJECT",
	Short: "List branches of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListBranches")
		if err != nil {
			return err
		}
		defer a.Close()

		branches, err := a.ListBranches(args[0])
		if err != nil {
			return err
		}

		for _, b := range branches {
			def := " "
			if b.IsDefault {
				def = "*"
			}
			fmt.Printf("%s %s  %-20s  head:%s\n", def, b.ID, b.Name, shortID(b.HeadCommitID))
		}
		return nil
	},
}

// lock command
var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage file edit locks",
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire FILE_ID USER_ID",
	Short: "Acquire an edit lease on a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AcquireLock")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		lock, err := a.AcquireLock(args[0], args[1])
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("Lock %s acquired, expires %s\n", lock.ID, lock.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var lockHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat LOCK_ID USER_ID",
	Short: "Extend an active lease",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("HeartbeatLock")
		if err != nil {
			return err
		}
		defer a.Close()

		lock, err := a.HeartbeatLock(args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("Lease extended, expires %s\n", lock.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release LOCK_ID USER_ID",
	Short: "Release a lease",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ReleaseLock")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		if err := a.ReleaseLock(args[0], args[1]); err != nil {
			a.MarkError()
			return err
		}

		fmt.Println("Lock released.")
		return nil
	},
}

var lockStatusCmd = &cobra.Command{
	Use:   "status FILE_ID",
	Short: "Show the active lock on a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("LockStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		lock, err := a.LockStatus(args[0])
		if err != nil {
			return err
		}
		if lock == nil {
			fmt.Println("File is free.")
			return nil
		}

		fmt.Printf("Locked by %s until %s (lock %s)\n",
			lock.UserID, lock.ExpiresAt.Format(time.RFC3339), lock.ID)
		return nil
	},
}

var lockSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge released and expired lock rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SweepLocks")
		if err != nil {
			return err
		}
		defer a.Close()

		purged, err := a.SweepLocks()
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("Purged %d lock row(s)\n", purged)
		return nil
	},
}

// file command
var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage working files",
}

var filePutCmd = &cobra.Command{
	Use:   "put BRANCH_ID NAME PATH",
	Short: "Save file content into the working tree",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		folderID, _ := cmd.Flags().GetString("folder")

		a, err := newApp("PutFile")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[1])

		content, err := os.ReadFile(args[2])
		if err != nil {
			a.MarkError()
			return fmt.Errorf("reading %s: %w", args[2], err)
		}

		file, err := a.PutFile(args[0], folderID, args[1], content)
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("%s  %s  %s\n", file.ID, file.Name, file.ContentHash)
		return nil
	},
}

var fileRmCmd = &cobra.Command{
	Use:   "rm FILE_ID",
	Short: "Delete a working file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteFile")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		if err := a.DeleteFile(args[0]); err != nil {
			a.MarkError()
			return err
		}

		fmt.Println("File deleted.")
		return nil
	},
}

var fileLsCmd = &cobra.Command{
	Use:   "ls BRANCH_ID",
	Short: "List the working tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folderID, _ := cmd.Flags().GetString("folder")

		a, err := newApp("ReadTree")
		if err != nil {
			return err
		}
		defer a.Close()

		folders, files, err := a.ReadTree(args[0], folderID)
		if err != nil {
			return err
		}

		for _, f := range folders {
			fmt.Printf("d %s  %s/\n", f.ID, f.Name)
		}
		for _, f := range files {
			fmt.Printf("f %s  %s  %s\n", f.ID, f.Name, f.ContentHash)
		}
		return nil
	},
}

var fileCatCmd = &cobra.Command{
	Use:   "cat FILE_ID",
	Short: "Print working file content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetFile")
		if err != nil {
			return err
		}
		defer a.Close()

		file, err := a.GetFile(args[0])
		if err != nil {
			return err
		}

		_, err = os.Stdout.Write(file.Content)
		return err
	},
}

var fileMkdirCmd = &cobra.Command{
	Use:   "mkdir BRANCH_ID NAME",
	Short: "Create a working folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentID, _ := cmd.Flags().GetString("parent")

		a, err := newApp("CreateFolder")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[1])

		folder, err := a.CreateFolder(args[0], parentID, args[1])
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("%s  %s/\n", folder.ID, folder.Name)
		return nil
	},
}

var fileRmdirCmd = &cobra.Command{
	Use:   "rmdir FOLDER_ID",
	Short: "Delete a working folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteFolder")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		if err := a.DeleteFolder(args[0]); err != nil {
			a.MarkError()
			return err
		}

		fmt.Println("Folder deleted.")
		return nil
	},
}

var fileDiscardCmd = &cobra.Command{
	Use:   "discard BRANCH_ID FILE_ID",
	Short: "Discard a pending change and restore the committed content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Discard")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[1])

		if err := a.Discard(args[0], args[1]); err != nil {
			a.MarkError()
			return err
		}

		fmt.Println("Change discarded.")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status BRANCH_ID",
	Short: "List pending changes on a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PendingChanges")
		if err != nil {
			return err
		}
		defer a.Close()

		changes, err := a.PendingChanges(args[0])
		if err != nil {
			return err
		}

		if len(changes) == 0 {
			fmt.Println("Working tree clean.")
			return nil
		}

		for _, c := range changes {
			fmt.Printf("%-6s  %s\n", c.ChangeType, c.FileID)
		}
		return nil
	},
}

// commit command
var commitCmd = &cobra.Command{
	Use:   "commit BRANCH_ID USER_ID",
	Short: "Commit the branch's pending changes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")

		a, err := newApp("Commit")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		commit, err := a.Commit(args[0], args[1], message)
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("Commit %s created\n", commit.ID)
		return nil
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Manage the push queue",
}

var pushRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Drain the push queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PushRun")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := unlockIfNeeded(cmd, a); err != nil {
			a.MarkError()
			return err
		}

		results, err := a.ProcessPushQueue(cmd.Context())
		if err != nil {
			a.MarkError()
			return err
		}

		if len(results) == 0 {
			fmt.Println("Queue is idle.")
			return nil
		}

		for _, r := range results {
			fmt.Printf("%-10s  commit:%s  attempts:%d\n",
				r.Outcome, shortID(r.Entry.CommitID), r.Entry.Attempts)
		}
		return nil
	},
}

var pushRetryCmd = &cobra.Command{
	Use:   "retry ENTRY_ID",
	Short: "Re-enqueue a terminally failed push entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PushRetry")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		entry, err := a.RetryPush(args[0])
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("Entry %s re-enqueued for commit %s\n", entry.ID, shortID(entry.CommitID))
		return nil
	},
}

var pushQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List push queue entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("ListPushQueue")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListPushQueue(project, status, limit)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No queue entries.")
			return nil
		}

		for _, e := range entries {
			errMsg := ""
			if e.LastError != "" {
				errMsg = "  " + e.LastError
			}
			fmt.Printf("%s  %-11s  commit:%s  attempts:%d/%d%s\n",
				e.ID, e.Status, shortID(e.CommitID), e.Attempts, e.MaxAttempts, errMsg)
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect remote sync state",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status BRANCH_ID",
	Short: "Show a branch's divergence classification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SyncStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.SyncStatus(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Branch %s: %s\n", st.Branch.Name, st.Status)
		if st.State != nil {
			fmt.Printf("  last push: %s\n", shortID(st.State.LastPushCommitID))
			fmt.Printf("  last pull: %s\n", shortID(st.State.LastPullCommitID))
		}
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull BRANCH_ID",
	Short: "Record the current remote tip for a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Pull")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		if err := unlockIfNeeded(cmd, a); err != nil {
			a.MarkError()
			return err
		}

		state, err := a.Pull(cmd.Context(), args[0])
		if err != nil {
			a.MarkError()
			return err
		}

		fmt.Printf("Remote tip %s recorded, status: %s\n",
			shortID(state.LastPullCommitID), state.SyncStatus)
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log FILE_ID",
	Short: "View file version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("FileHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.FileHistory(args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No committed versions.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("v%-4d  %s  %-6s  %s  %s  %s\n",
				e.VersionNumber,
				shortID(e.CommitID),
				e.ChangeType,
				e.CommittedAt.Format("2006-01-02 15:04:05"),
				e.AuthorID,
				e.Message,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// unlockIfNeeded prompts for the credential passphrase when --unlock was given.
func unlockIfNeeded(cmd *cobra.Command, a *app.App) error {
	unlock, _ := cmd.Flags().GetBool("unlock")
	if !unlock {
		return nil
	}
	passphrase, err := readPassphrase("Passphrase: ")
	if err != nil {
		return err
	}
	return a.UnlockCredentials(passphrase)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	if id == "" {
		return "-"
	}
	return id
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCredentialsCmd)
	configCredentialsCmd.Flags().String("username", "", "Git username")
	configCredentialsCmd.Flags().String("token", "", "Git access token")
	configCredentialsCmd.Flags().String("ssh-key", "", "Path to SSH private key")

	// project subcommands
	projectCmd.AddCommand(projectCreateCmd)
	projectCreateCmd.Flags().String("repo", "", "Git remote URL")
	projectCreateCmd.Flags().String("remote-branch", "main", "Remote branch to sync with")
	projectCreateCmd.Flags().Bool("sync", false, "Enable git synchronization")
	projectCmd.AddCommand(projectListCmd)

	// branch subcommands
	branchCmd.AddCommand(branchUserCmd)
	branchCmd.AddCommand(branchListCmd)

	// lock subcommands
	lockCmd.AddCommand(lockAcquireCmd)
	lockCmd.AddCommand(lockHeartbeatCmd)
	lockCmd.AddCommand(lockReleaseCmd)
	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockSweepCmd)

	// file subcommands
	fileCmd.AddCommand(filePutCmd)
	filePutCmd.Flags().String("folder", "", "Parent folder ID")
	fileCmd.AddCommand(fileRmCmd)
	fileCmd.AddCommand(fileCatCmd)
	fileCmd.AddCommand(fileMkdirCmd)
	fileMkdirCmd.Flags().String("parent", "", "Parent folder ID")
	fileCmd.AddCommand(fileRmdirCmd)
	fileCmd.AddCommand(fileLsCmd)
	fileLsCmd.Flags().String("folder", "", "Parent folder ID")
	fileCmd.AddCommand(fileDiscardCmd)

	// push subcommands
	pushCmd.AddCommand(pushRunCmd)
	pushRunCmd.Flags().Bool("unlock", false, "Prompt for the credential passphrase")
	pushCmd.AddCommand(pushRetryCmd)
	pushCmd.AddCommand(pushQueueCmd)
	pushQueueCmd.Flags().String("project", "", "Filter by project name")
	pushQueueCmd.Flags().String("status", "", "Filter by status")
	pushQueueCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")

	// sync subcommands
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncPullCmd.Flags().Bool("unlock", false, "Prompt for the credential passphrase")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
