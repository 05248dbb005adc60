package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sn-go/internal/app"
	"sn-go/internal/model"
	"sn-go/internal/sn"

	"github.com/spf13/cobra"
)

// post command
var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Manage posts",
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a post as the acting user",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		text, _ := cmd.Flags().GetString("text")
		location, _ := cmd.Flags().GetString("location")
		mediaPath, _ := cmd.Flags().GetString("media")

		return withApp(cmd, "CreatePost", func(ctx context.Context, a *app.SNApp) error {
			v, err := a.CreatePost(ctx, sn.NewPost{AuthorID: id, Text: text, Location: location}, mediaPath)
			if err != nil {
				return fmt.Errorf("creating post: %w", err)
			}
			fmt.Printf("Created post %s\n", v.Post.ID)
			return nil
		})
	},
}

var postShowCmd = &cobra.Command{
	Use:   "show POST_ID",
	Short: "View a post with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "GetPost", func(ctx context.Context, a *app.SNApp) error {
			v, err := a.Service().GetPost(ctx, args[0])
			if err != nil {
				return err
			}
			printPost(*v)
			return nil
		})
	},
}

var postUpdateCmd = &cobra.Command{
	Use:   "update POST_ID",
	Short: "Change a post's text, location or media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ch := sn.PostChanges{
			Text:     stringFlag(cmd, "text"),
			Location: stringFlag(cmd, "location"),
		}
		mediaPath, _ := cmd.Flags().GetString("media")

		return withApp(cmd, "UpdatePost", func(ctx context.Context, a *app.SNApp) error {
			p, err := a.UpdatePost(ctx, args[0], ch, mediaPath)
			if errors.Is(err, sn.ErrNoUpdate) {
				fmt.Println("Nothing to update.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("updating post: %w", err)
			}
			fmt.Printf("Updated post %s\n", p.ID)
			return nil
		})
	},
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete POST_ID",
	Short: "Delete a post with its comments and media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "DeletePost", func(ctx context.Context, a *app.SNApp) error {
			if err := a.Service().DeletePost(ctx, args[0]); err != nil {
				return fmt.Errorf("deleting post: %w", err)
			}
			fmt.Printf("Deleted post %s\n", args[0])
			return nil
		})
	},
}

// like command
var likeCmd = &cobra.Command{
	Use:   "like POST_ID",
	Short: "Like a post, or a comment with --comment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		undo, _ := cmd.Flags().GetBool("undo")
		commentID, _ := cmd.Flags().GetString("comment")

		var target model.Likeable = model.PostRef(args[0])
		if commentID != "" {
			target = model.CommentRef(commentID)
		}

		return withApp(cmd, "ToggleLike", func(ctx context.Context, a *app.SNApp) error {
			liked, err := a.Service().ToggleLike(ctx, target, id, !undo)
			if err != nil {
				return err
			}
			if liked {
				fmt.Println("Liked")
			} else {
				fmt.Println("Not liked")
			}
			return nil
		})
	},
}

// comment command
var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add POST_ID",
	Short: "Comment on a post as the acting user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		text, _ := cmd.Flags().GetString("text")
		image, _ := cmd.Flags().GetString("image")

		return withApp(cmd, "AddComment", func(ctx context.Context, a *app.SNApp) error {
			v, err := a.AddComment(ctx, args[0], id, text, image)
			if err != nil {
				return fmt.Errorf("adding comment: %w", err)
			}
			fmt.Printf("Created comment %s\n", v.Comment.ID)
			return nil
		})
	},
}

var commentUpdateCmd = &cobra.Command{
	Use:   "update COMMENT_ID",
	Short: "Change a comment's text or image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := stringFlag(cmd, "text")
		image, _ := cmd.Flags().GetString("image")

		return withApp(cmd, "UpdateComment", func(ctx context.Context, a *app.SNApp) error {
			c, err := a.UpdateComment(ctx, args[0], text, image)
			if errors.Is(err, sn.ErrNoUpdate) {
				fmt.Println("Nothing to update.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("updating comment: %w", err)
			}
			fmt.Printf("Updated comment %s\n", c.ID)
			return nil
		})
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete POST_ID COMMENT_ID",
	Short: "Delete a comment from a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "DeleteComment", func(ctx context.Context, a *app.SNApp) error {
			if err := a.Service().DeleteComment(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("deleting comment: %w", err)
			}
			fmt.Printf("Deleted comment %s\n", args[1])
			return nil
		})
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Read feeds",
}

var feedHomeCmd = &cobra.Command{
	Use:   "home",
	Short: "Posts by the acting user and everyone they follow",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := actor(cmd)
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		return withApp(cmd, "HomeFeed", func(ctx context.Context, a *app.SNApp) error {
			fp, err := a.Service().HomeFeed(ctx, id, page)
			if err != nil {
				return err
			}
			printFeed(fp)
			return nil
		})
	},
}

var feedProfileCmd = &cobra.Command{
	Use:   "profile USER_ID",
	Short: "Posts by one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		return withApp(cmd, "ProfileFeed", func(ctx context.Context, a *app.SNApp) error {
			fp, err := a.Service().ProfileFeed(ctx, args[0], page)
			if err != nil {
				return err
			}
			printFeed(fp)
			return nil
		})
	},
}

func authorName(a *sn.Author) string {
	if a == nil {
		return "[deleted]"
	}
	return a.Username
}

func printPost(v sn.PostView) {
	p := v.Post
	fmt.Printf("%s  %s  %s\n", p.ID, authorName(v.Author), p.CreatedAt.Format("2006-01-02 15:04:05"))
	if p.Text != "" {
		fmt.Printf("  %s\n", p.Text)
	}
	if p.Location != "" {
		fmt.Printf("  at %s\n", p.Location)
	}
	if !p.Media.IsEmpty() {
		fmt.Printf("  [%s] %s\n", p.Media.Kind, p.Media.URL)
	}
	fmt.Printf("  %d like(s), %d comment(s)\n", len(p.Likes), len(v.Comments))
	for _, c := range v.Comments {
		line := c.Comment.Text
		if !c.Comment.Image.IsEmpty() {
			line = strings.TrimSpace(line + " [image] " + c.Comment.Image.URL)
		}
		fmt.Printf("    %s  %s: %s\n", c.Comment.ID, authorName(c.Author), line)
	}
}

func printFeed(fp *sn.FeedPage) {
	if len(fp.Posts) == 0 {
		fmt.Println("No posts.")
		return
	}
	for _, v := range fp.Posts {
		printPost(v)
		fmt.Println()
	}
	if fp.HasMore {
		fmt.Printf("More posts on page %d.\n", fp.Page+1)
	}
}

func init() {
	postCreateCmd.Flags().String("text", "", "Post text")
	postCreateCmd.Flags().String("location", "", "Location")
	postCreateCmd.Flags().String("media", "", "Path to an image or video")
	postUpdateCmd.Flags().String("text", "", "New text")
	postUpdateCmd.Flags().String("location", "", "New location")
	postUpdateCmd.Flags().String("media", "", "Path to replacement media")

	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postUpdateCmd)
	postCmd.AddCommand(postDeleteCmd)

	likeCmd.Flags().Bool("undo", false, "Remove the like instead")
	likeCmd.Flags().String("comment", "", "Like this comment of the post instead")

	commentAddCmd.Flags().String("text", "", "Comment text")
	commentAddCmd.Flags().String("image", "", "Path to an image")
	commentUpdateCmd.Flags().String("text", "", "New text")
	commentUpdateCmd.Flags().String("image", "", "Path to a replacement image")

	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentUpdateCmd)
	commentCmd.AddCommand(commentDeleteCmd)

	feedHomeCmd.Flags().IntP("page", "p", 1, "Page number, starting at 1")
	feedProfileCmd.Flags().IntP("page", "p", 1, "Page number, starting at 1")

	feedCmd.AddCommand(feedHomeCmd)
	feedCmd.AddCommand(feedProfileCmd)

	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(feedCmd)
}
