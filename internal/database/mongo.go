package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// MongoStore implements the sn.Store interface on MongoDB.
//
// Each user, post and comment is one document; set membership uses
// $addToSet and $pull so every mutation is a single atomic update.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
}

// NewMongoStore connects to uri, selects the database and ensures indexes.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		posts:    db.Collection("posts"),
		comments: db.Collection("comments"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		s.posts: {
			{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		},
		s.comments: {
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// mongoErr maps driver errors onto the sn error taxonomy.
func mongoErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %v", op, sn.ErrConflict, err)
	case mongo.IsNetworkError(err) || mongo.IsTimeout(err):
		return sn.NewExternalError("store", op, true, err)
	default:
		return sn.NewExternalError("store", op, false, err)
	}
}

// Documents

type mediaDoc struct {
	URL    string `bson:"url"`
	Handle string `bson:"handle"`
	Kind   string `bson:"kind,omitempty"`
}

func toMediaDoc(r model.MediaRef) mediaDoc {
	return mediaDoc{URL: r.URL, Handle: r.Handle, Kind: string(r.Kind)}
}

func (d mediaDoc) ref() model.MediaRef {
	if d.URL == "" && d.Handle == "" {
		return model.MediaRef{}
	}
	kind := model.MediaKind(d.Kind)
	if !kind.Valid() {
		kind = model.MediaImage
	}
	return model.MediaRef{URL: d.URL, Handle: d.Handle, Kind: kind}
}

type linksDoc struct {
	Facebook  string `bson:"facebook"`
	Instagram string `bson:"instagram"`
	Twitter   string `bson:"twitter"`
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password_hash"`
	Bio          string    `bson:"bio"`
	Links        linksDoc  `bson:"links"`
	ProfileImage mediaDoc  `bson:"profile_image"`
	CoverImage   mediaDoc  `bson:"cover_image"`
	Followers    []string  `bson:"followers"`
	Following    []string  `bson:"following"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d *userDoc) user() *model.User {
	return &model.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Bio:          d.Bio,
		Links:        model.SocialLinks(d.Links),
		ProfileImage: d.ProfileImage.ref(),
		CoverImage:   d.CoverImage.ref(),
		Followers:    nonNil(d.Followers),
		Following:    nonNil(d.Following),
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

type postDoc struct {
	ID        string    `bson:"_id"`
	AuthorID  string    `bson:"author_id"`
	Text      string    `bson:"text"`
	Location  string    `bson:"location"`
	Media     mediaDoc  `bson:"media"`
	Likes     []string  `bson:"likes"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *postDoc) post() *model.Post {
	return &model.Post{
		ID:         d.ID,
		AuthorID:   d.AuthorID,
		Text:       d.Text,
		Location:   d.Location,
		Media:      d.Media.ref(),
		Likes:      nonNil(d.Likes),
		CommentIDs: []string{},
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

type commentDoc struct {
	ID        string    `bson:"_id"`
	PostID    string    `bson:"post_id"`
	AuthorID  string    `bson:"author_id"`
	Text      string    `bson:"text"`
	Image     mediaDoc  `bson:"image"`
	Likes     []string  `bson:"likes"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *commentDoc) comment() *model.Comment {
	return &model.Comment{
		ID:        d.ID,
		PostID:    d.PostID,
		AuthorID:  d.AuthorID,
		Text:      d.Text,
		Image:     d.Image.ref(),
		Likes:     nonNil(d.Likes),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// findOne decodes a single document, returning false when none matched.
func findOne(ctx context.Context, coll *mongo.Collection, filter any, out any, opts ...*options.FindOneOptions) (bool, error) {
	err := coll.FindOne(ctx, filter, opts...).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// User operations

func (s *MongoStore) CreateUser(ctx context.Context, u *model.User) error {
	doc := userDoc{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Bio:          u.Bio,
		Links:        linksDoc(u.Links),
		ProfileImage: toMediaDoc(u.ProfileImage),
		CoverImage:   toMediaDoc(u.CoverImage),
		Followers:    []string{},
		Following:    []string{},
		CreatedAt:    u.CreatedAt,
	}
	_, err := s.users.InsertOne(ctx, doc)
	return mongoErr("creating user", err)
}

func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	ok, err := findOne(ctx, s.users, filter, &doc)
	if err != nil {
		return nil, mongoErr("finding user", err)
	}
	if !ok {
		return nil, nil // Not found
	}
	return doc.user(), nil
}

func (s *MongoStore) FindUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"followers": 0, "following": 0})
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, mongoErr("finding users", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("finding users", err)
	}
	for i := range docs {
		u := docs[i].user()
		u.Followers, u.Following = nil, nil
		out[u.ID] = u
	}
	return out, nil
}

func (s *MongoStore) SearchUsersByName(ctx context.Context, fragment string, limit int) ([]*model.User, error) {
	filter := bson.M{"name": bson.M{"$regex": regexp.QuoteMeta(fragment), "$options": "i"}}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr("searching users", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("searching users", err)
	}
	out := make([]*model.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].user())
	}
	return out, nil
}

func (s *MongoStore) ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$gt": afterID}}, opts)
	if err != nil {
		return nil, mongoErr("listing users", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("listing users", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Links != nil {
		set["links"] = linksDoc(*upd.Links)
	}
	if upd.PasswordHash != nil {
		set["password_hash"] = *upd.PasswordHash
	}
	if upd.ProfileImage != nil {
		set["profile_image"] = toMediaDoc(*upd.ProfileImage)
	}
	if upd.CoverImage != nil {
		set["cover_image"] = toMediaDoc(*upd.CoverImage)
	}

	var prev userDoc
	if err := s.swapOne(ctx, s.users, id, set, &prev); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return prev.user(), nil
}

// swapOne applies $set to one document and decodes the document as it was
// before the update. An empty set only reads the document.
func (s *MongoStore) swapOne(ctx context.Context, coll *mongo.Collection, id string, set bson.M, prev any) error {
	var err error
	if len(set) == 0 {
		err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(prev)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
		err = coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(prev)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sn.ErrNotFound
	}
	return mongoErr("updating "+coll.Name(), err)
}

// Follow graph operations

func (s *MongoStore) AddFollower(ctx context.Context, userID, followerID string) error {
	return s.setOp(ctx, s.users, "$addToSet", userID, "followers", followerID, "adding follower")
}

func (s *MongoStore) RemoveFollower(ctx context.Context, userID, followerID string) error {
	return s.setOp(ctx, s.users, "$pull", userID, "followers", followerID, "removing follower")
}

func (s *MongoStore) AddFollowing(ctx context.Context, userID, targetID string) error {
	return s.setOp(ctx, s.users, "$addToSet", userID, "following", targetID, "adding following")
}

func (s *MongoStore) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	return s.setOp(ctx, s.users, "$pull", userID, "following", targetID, "removing following")
}

func (s *MongoStore) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	return s.listSet(ctx, s.users, userID, "followers", "listing followers")
}

func (s *MongoStore) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return s.listSet(ctx, s.users, userID, "following", "listing following")
}

// setOp applies a single $addToSet or $pull to one document's array field.
func (s *MongoStore) setOp(ctx context.Context, coll *mongo.Collection, operator, id, field, value, op string) error {
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{operator: bson.M{field: value}})
	if err != nil {
		return mongoErr(op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %s %s: %w", op, coll.Name(), id, sn.ErrNotFound)
	}
	return nil
}

// listSet reads one array field. A missing document has an empty set.
func (s *MongoStore) listSet(ctx context.Context, coll *mongo.Collection, id, field, op string) ([]string, error) {
	var doc bson.M
	ok, err := findOne(ctx, coll, bson.M{"_id": id}, &doc, options.FindOne().SetProjection(bson.M{field: 1}))
	if err != nil {
		return nil, mongoErr(op, err)
	}
	out := []string{}
	if !ok {
		return out, nil
	}
	if arr, isArr := doc[field].(bson.A); isArr {
		for _, v := range arr {
			if str, isStr := v.(string); isStr {
				out = append(out, str)
			}
		}
	}
	return out, nil
}

// Post operations

func (s *MongoStore) CreatePost(ctx context.Context, p *model.Post) error {
	doc := postDoc{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Text:      p.Text,
		Location:  p.Location,
		Media:     toMediaDoc(p.Media),
		Likes:     []string{},
		CreatedAt: p.CreatedAt,
	}
	_, err := s.posts.InsertOne(ctx, doc)
	return mongoErr("creating post", err)
}

func (s *MongoStore) FindPostByID(ctx context.Context, id string) (*model.Post, error) {
	var doc postDoc
	ok, err := findOne(ctx, s.posts, bson.M{"_id": id}, &doc)
	if err != nil {
		return nil, mongoErr("finding post", err)
	}
	if !ok {
		return nil, nil // Not found
	}
	p := doc.post()
	if err := s.attachCommentIDs(ctx, []*model.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *MongoStore) FindPosts(ctx context.Context, q model.PostQuery) ([]*model.Post, error) {
	posts := []*model.Post{}
	if len(q.AuthorIDs) == 0 || q.Limit <= 0 {
		return posts, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))
	cur, err := s.posts.Find(ctx, bson.M{"author_id": bson.M{"$in": q.AuthorIDs}}, opts)
	if err != nil {
		return nil, mongoErr("finding posts", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("finding posts", err)
	}
	for i := range docs {
		posts = append(posts, docs[i].post())
	}
	if err := s.attachCommentIDs(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *MongoStore) attachCommentIDs(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*model.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1, "post_id": 1})
	cur, err := s.comments.Find(ctx, bson.M{"post_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return mongoErr("listing post comments", err)
	}
	var docs []struct {
		ID     string `bson:"_id"`
		PostID string `bson:"post_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return mongoErr("listing post comments", err)
	}
	for _, d := range docs {
		if p := byID[d.PostID]; p != nil {
			p.CommentIDs = append(p.CommentIDs, d.ID)
		}
	}
	return nil
}

func (s *MongoStore) UpdatePost(ctx context.Context, id string, upd model.PostUpdate) (*model.Post, error) {
	set := bson.M{}
	if upd.Text != nil {
		set["text"] = *upd.Text
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Media != nil {
		set["media"] = toMediaDoc(*upd.Media)
	}
	var prev postDoc
	if err := s.swapOne(ctx, s.posts, id, set, &prev); err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}
	return prev.post(), nil
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) (*model.Post, error) {
	var doc postDoc
	err := s.posts.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mongoErr("deleting post", err)
	}
	return doc.post(), nil
}

// Like operations

func (s *MongoStore) likeCollection(target model.Likeable) (*mongo.Collection, error) {
	switch target.LikeKind() {
	case model.PostEntity:
		return s.posts, nil
	case model.CommentEntity:
		return s.comments, nil
	default:
		return nil, fmt.Errorf("%w: unknown like target %q", sn.ErrInvalidInput, target.LikeKind())
	}
}

func (s *MongoStore) AddLike(ctx context.Context, target model.Likeable, userID string) error {
	coll, err := s.likeCollection(target)
	if err != nil {
		return err
	}
	return s.setOp(ctx, coll, "$addToSet", target.LikeKey(), "likes", userID, "adding like")
}

func (s *MongoStore) RemoveLike(ctx context.Context, target model.Likeable, userID string) error {
	coll, err := s.likeCollection(target)
	if err != nil {
		return err
	}
	return s.setOp(ctx, coll, "$pull", target.LikeKey(), "likes", userID, "removing like")
}

func (s *MongoStore) ListLikes(ctx context.Context, target model.Likeable) ([]string, error) {
	coll, err := s.likeCollection(target)
	if err != nil {
		return nil, err
	}
	return s.listSet(ctx, coll, target.LikeKey(), "likes", "listing likes")
}

// Comment operations

func (s *MongoStore) CreateComment(ctx context.Context, c *model.Comment) error {
	doc := commentDoc{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Text:      c.Text,
		Image:     toMediaDoc(c.Image),
		Likes:     []string{},
		CreatedAt: c.CreatedAt,
	}
	_, err := s.comments.InsertOne(ctx, doc)
	return mongoErr("creating comment", err)
}

func (s *MongoStore) FindCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	var doc commentDoc
	ok, err := findOne(ctx, s.comments, bson.M{"_id": id}, &doc)
	if err != nil {
		return nil, mongoErr("finding comment", err)
	}
	if !ok {
		return nil, nil // Not found
	}
	return doc.comment(), nil
}

func (s *MongoStore) ListCommentsByPosts(ctx context.Context, postIDs []string) (map[string][]*model.Comment, error) {
	out := make(map[string][]*model.Comment)
	if len(postIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.comments.Find(ctx, bson.M{"post_id": bson.M{"$in": postIDs}}, opts)
	if err != nil {
		return nil, mongoErr("listing comments", err)
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("listing comments", err)
	}
	for i := range docs {
		c := docs[i].comment()
		out[c.PostID] = append(out[c.PostID], c)
	}
	return out, nil
}

func (s *MongoStore) UpdateComment(ctx context.Context, id string, upd model.CommentUpdate) (*model.Comment, error) {
	set := bson.M{}
	if upd.Text != nil {
		set["text"] = *upd.Text
	}
	if upd.Image != nil {
		set["image"] = toMediaDoc(*upd.Image)
	}
	var prev commentDoc
	if err := s.swapOne(ctx, s.comments, id, set, &prev); err != nil {
		return nil, fmt.Errorf("comment %s: %w", id, err)
	}
	return prev.comment(), nil
}

func (s *MongoStore) DeleteComment(ctx context.Context, id string) (*model.Comment, error) {
	var doc commentDoc
	err := s.comments.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mongoErr("deleting comment", err)
	}
	return doc.comment(), nil
}

// Lifecycle

func (s *MongoStore) Ping(ctx context.Context) error {
	return mongoErr("pinging mongodb", s.client.Ping(ctx, readpref.Primary()))
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Compile-time check that MongoStore implements sn.Store interface
var _ sn.Store = (*MongoStore)(nil)
