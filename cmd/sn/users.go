package main

import (
	"context"
	"errors"
	"fmt"

	"sn-go/internal/app"
	"sn-go/internal/model"
	"sn-go/internal/sn"

	"github.com/spf13/cobra"
)

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts and profiles",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		image, _ := cmd.Flags().GetString("image")

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		return withApp(cmd, "RegisterUser", func(ctx context.Context, a *app.SNApp) error {
			u, err := a.RegisterUser(ctx, sn.NewUser{
				Name:     name,
				Username: username,
				Email:    email,
				Password: password,
			}, image)
			if err != nil {
				return fmt.Errorf("registering user: %w", err)
			}
			fmt.Printf("Created user %s (%s)\n", u.Username, u.ID)
			return nil
		})
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show USER_ID",
	Short: "View a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "GetUser", func(ctx context.Context, a *app.SNApp) error {
			u, err := a.Service().GetUser(ctx, args[0])
			if err != nil {
				return err
			}
			printUser(u)
			return nil
		})
	},
}

var userSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find users by username or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "SearchUsers", func(ctx context.Context, a *app.SNApp) error {
			authors, err := a.Service().SearchUsers(ctx, args[0])
			if err != nil {
				return err
			}
			if len(authors) == 0 {
				fmt.Println("No users found.")
				return nil
			}
			for _, au := range authors {
				fmt.Printf("%s  %-20s  %s\n", au.ID, au.Username, au.Name)
			}
			return nil
		})
	},
}

var userAvailableCmd = &cobra.Command{
	Use:   "available USERNAME",
	Short: "Check whether a username is free",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "IsUsernameAvailable", func(ctx context.Context, a *app.SNApp) error {
			ok, err := a.Service().IsUsernameAvailable(ctx, args[0])
			if err != nil {
				return err
			}
			if ok {
				fmt.Printf("%s is available\n", args[0])
			} else {
				fmt.Printf("%s is taken\n", args[0])
			}
			return nil
		})
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the acting user's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		ch := sn.ProfileChanges{
			Name: stringFlag(cmd, "name"),
			Bio:  stringFlag(cmd, "bio"),
		}
		if changePassword, _ := cmd.Flags().GetBool("password"); changePassword {
			if ch.Password, err = readPassword("New password: "); err != nil {
				return err
			}
			if ch.ConfirmPassword, err = readPassword("Confirm password: "); err != nil {
				return err
			}
		}
		profile, _ := cmd.Flags().GetString("profile-image")
		cover, _ := cmd.Flags().GetString("cover-image")

		return withApp(cmd, "UpdateProfile", func(ctx context.Context, a *app.SNApp) error {
			if links := linkFlags(cmd); len(links) > 0 {
				// Links are replaced as a set, so start from the stored ones.
				u, err := a.Service().GetUser(ctx, id)
				if err != nil {
					return err
				}
				merged := u.Links
				for name, v := range links {
					switch name {
					case "facebook":
						merged.Facebook = v
					case "instagram":
						merged.Instagram = v
					case "twitter":
						merged.Twitter = v
					}
				}
				ch.Links = &merged
			}

			u, err := a.UpdateProfile(ctx, id, ch, profile, cover)
			if errors.Is(err, sn.ErrNoUpdate) {
				fmt.Println("Nothing to update.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("updating profile: %w", err)
			}
			printUser(u)
			return nil
		})
	},
}

var userImageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage profile and cover images",
}

var userImageSetCmd = &cobra.Command{
	Use:   "set profile|cover PATH",
	Short: "Replace an image of the acting user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "ReplaceUserImage", func(ctx context.Context, a *app.SNApp) error {
			u, err := a.ReplaceUserImage(ctx, id, model.ImageSlot(args[0]), args[1])
			if err != nil {
				return fmt.Errorf("replacing image: %w", err)
			}
			fmt.Printf("%s image: %s\n", args[0], u.Image(model.ImageSlot(args[0])).URL)
			return nil
		})
	},
}

var userImageRemoveCmd = &cobra.Command{
	Use:   "remove profile|cover",
	Short: "Remove an image of the acting user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "RemoveUserImage", func(ctx context.Context, a *app.SNApp) error {
			if _, err := a.Service().RemoveUserImage(ctx, id, model.ImageSlot(args[0])); err != nil {
				return fmt.Errorf("removing image: %w", err)
			}
			fmt.Printf("Removed %s image\n", args[0])
			return nil
		})
	},
}

// follow graph commands
var followCmd = &cobra.Command{
	Use:   "follow USER_ID",
	Short: "Follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "Follow", func(ctx context.Context, a *app.SNApp) error {
			return a.Service().Follow(ctx, id, args[0])
		})
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow USER_ID",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "Unfollow", func(ctx context.Context, a *app.SNApp) error {
			return a.Service().Unfollow(ctx, id, args[0])
		})
	},
}

var followersCmd = &cobra.Command{
	Use:   "followers [USER_ID]",
	Short: "List a user's followers (default: the acting user)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listGraph(cmd, args, "ListFollowers", (*sn.SNService).ListFollowers)
	},
}

var followingCmd = &cobra.Command{
	Use:   "following [USER_ID]",
	Short: "List who a user follows (default: the acting user)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listGraph(cmd, args, "ListFollowing", (*sn.SNService).ListFollowing)
	},
}

func listGraph(cmd *cobra.Command, args []string, operation string, list func(*sn.SNService, context.Context, string) ([]string, error)) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		var err error
		if id, err = actor(cmd); err != nil {
			return err
		}
	}
	return withApp(cmd, operation, func(ctx context.Context, a *app.SNApp) error {
		ids, err := list(a.Service(), ctx, id)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("None.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	})
}

// linkFlags returns the social link flags that were set.
func linkFlags(cmd *cobra.Command) map[string]string {
	links := map[string]string{}
	for _, name := range []string{"facebook", "instagram", "twitter"} {
		if v := stringFlag(cmd, name); v != nil {
			links[name] = *v
		}
	}
	return links
}

func printUser(u *model.User) {
	fmt.Printf("ID:        %s\n", u.ID)
	fmt.Printf("Username:  %s\n", u.Username)
	fmt.Printf("Name:      %s\n", u.Name)
	fmt.Printf("Email:     %s\n", u.Email)
	if u.Bio != "" {
		fmt.Printf("Bio:       %s\n", u.Bio)
	}
	if !u.ProfileImage.IsEmpty() {
		fmt.Printf("Profile:   %s\n", u.ProfileImage.URL)
	}
	if !u.CoverImage.IsEmpty() {
		fmt.Printf("Cover:     %s\n", u.CoverImage.URL)
	}
	fmt.Printf("Followers: %d\n", len(u.Followers))
	fmt.Printf("Following: %d\n", len(u.Following))
	fmt.Printf("Joined:    %s\n", u.CreatedAt.Format("2006-01-02 15:04:05"))
}

func init() {
	userCreateCmd.Flags().String("username", "", "Unique username")
	userCreateCmd.Flags().String("email", "", "Unique email address")
	userCreateCmd.Flags().String("name", "", "Display name")
	userCreateCmd.Flags().String("image", "", "Path to a profile image")

	userUpdateCmd.Flags().String("name", "", "Display name")
	userUpdateCmd.Flags().String("bio", "", "Profile bio")
	userUpdateCmd.Flags().String("facebook", "", "Facebook link")
	userUpdateCmd.Flags().String("instagram", "", "Instagram link")
	userUpdateCmd.Flags().String("twitter", "", "Twitter link")
	userUpdateCmd.Flags().Bool("password", false, "Prompt for a new password")
	userUpdateCmd.Flags().String("profile-image", "", "Path to a new profile image")
	userUpdateCmd.Flags().String("cover-image", "", "Path to a new cover image")

	userImageCmd.AddCommand(userImageSetCmd)
	userImageCmd.AddCommand(userImageRemoveCmd)

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userSearchCmd)
	userCmd.AddCommand(userAvailableCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userImageCmd)

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(unfollowCmd)
	rootCmd.AddCommand(followersCmd)
	rootCmd.AddCommand(followingCmd)
}
