// Package mongodb is the document-store variant of the product store. The
// monitoring engine only sees the repository interfaces.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/hadef-dev/pricewatch/pricewatch/database/repositories"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb unreachable: %w", err)
	}

	db := client.Database(database)

	// Matches the index set the relational stores create.
	productIdx := db.Collection("products").Indexes()
	if _, err := productIdx.CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "last_checked", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("failed to create product indexes: %w", err)
	}

	return &Store{client: client, db: db}, nil
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *Store) Products() repositories.ProductRepository {
	return &productRepository{coll: s.db.Collection("products")}
}

func (s *Store) Users() repositories.UserRepository {
	return &userRepository{
		users:    s.db.Collection("users"),
		products: s.db.Collection("products"),
		history:  s.db.Collection("price_history"),
	}
}

func (s *Store) History() repositories.HistoryRepository {
	return &historyRepository{coll: s.db.Collection("price_history")}
}

type productDoc struct {
	UserID        string     `bson:"user_id"`
	ProductID     string     `bson:"product_id"`
	ProductURL    string     `bson:"product_url"`
	Title         string     `bson:"title"`
	CurrentPrice  float64    `bson:"current_price"`
	OriginalPrice float64    `bson:"original_price"`
	Currency      string     `bson:"currency"`
	ImageURL      string     `bson:"image_url"`
	Country       string     `bson:"country"`
	DateAdded     time.Time  `bson:"date_added"`
	LastChecked   *time.Time `bson:"last_checked"`
}

func (d *productDoc) toModel() *models.Product {
	return &models.Product{
		UserID:        d.UserID,
		ProductID:     d.ProductID,
		ProductURL:    d.ProductURL,
		Title:         d.Title,
		CurrentPrice:  d.CurrentPrice,
		OriginalPrice: d.OriginalPrice,
		Currency:      d.Currency,
		ImageURL:      d.ImageURL,
		Country:       d.Country,
		DateAdded:     d.DateAdded,
		LastChecked:   d.LastChecked,
	}
}

type productRepository struct {
	coll *mongo.Collection
}

func (r *productRepository) Upsert(ctx context.Context, product *models.Product) error {
	if product.DateAdded.IsZero() {
		product.DateAdded = time.Now()
	}
	filter := bson.M{"user_id": product.UserID, "product_id": product.ProductID}
	update := bson.M{
		"$set": bson.M{
			"product_url":    product.ProductURL,
			"title":          product.Title,
			"current_price":  product.CurrentPrice,
			"original_price": product.OriginalPrice,
			"currency":       product.Currency,
			"image_url":      product.ImageURL,
			"country":        product.Country,
		},
		"$setOnInsert": bson.M{"date_added": product.DateAdded},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *productRepository) GetByID(ctx context.Context, userID, productID string) (*models.Product, error) {
	var doc productDoc
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID, "product_id": productID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *productRepository) GetByUser(ctx context.Context, userID string) ([]*models.Product, error) {
	return r.find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "date_added", Value: 1}}))
}

func (r *productRepository) GetProductsToCheck(ctx context.Context, limit int) ([]*models.Product, error) {
	// Mongo sorts missing/null values first on ascending order, so
	// never-checked products come ahead of everything else.
	return r.find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "last_checked", Value: 1}}).
			SetLimit(int64(limit)))
}

func (r *productRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.Product, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []*models.Product
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		products = append(products, doc.toModel())
	}
	return products, cursor.Err()
}

func (r *productRepository) UpdatePrice(ctx context.Context, userID, productID string, newPrice float64, country, productURL string) error {
	set := bson.M{
		"current_price": newPrice,
		"last_checked":  time.Now(),
	}
	if country != "" {
		set["country"] = country
	}
	if productURL != "" {
		set["product_url"] = productURL
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "product_id": productID},
		bson.M{"$set": set})
	return err
}

func (r *productRepository) UpdateCountryForUser(ctx context.Context, userID, country string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"country": country}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *productRepository) Delete(ctx context.Context, userID, productID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "product_id": productID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *productRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	return int(count), err
}

type userDoc struct {
	UserID              string     `bson:"user_id"`
	Username            string     `bson:"username"`
	Country             string     `bson:"country"`
	DateAdded           time.Time  `bson:"date_added"`
	LastUpdateReminder  *time.Time `bson:"last_update_reminder"`
	UpdateDeadline      *time.Time `bson:"update_deadline"`
	NeedsUpdateResponse bool       `bson:"needs_update_response"`
}

type userRepository struct {
	users    *mongo.Collection
	products *mongo.Collection
	history  *mongo.Collection
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	if user.DateAdded.IsZero() {
		user.DateAdded = time.Now()
	}
	_, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": user.UserID},
		bson.M{
			"$set":         bson.M{"username": user.Username, "country": user.Country},
			"$setOnInsert": bson.M{"date_added": user.DateAdded, "needs_update_response": false},
		},
		options.Update().SetUpsert(true))
	return err
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var doc userDoc
	err := r.users.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &models.User{
		UserID:              doc.UserID,
		Username:            doc.Username,
		Country:             doc.Country,
		DateAdded:           doc.DateAdded,
		LastUpdateReminder:  doc.LastUpdateReminder,
		UpdateDeadline:      doc.UpdateDeadline,
		NeedsUpdateResponse: doc.NeedsUpdateResponse,
	}, nil
}

func (r *userRepository) GetCountry(ctx context.Context, userID string) (string, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil || user == nil {
		return "", err
	}
	return user.Country, nil
}

func (r *userRepository) SetCountry(ctx context.Context, userID, country string) error {
	_, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"country": country}})
	return err
}

func (r *userRepository) GetUsersNeedingReminder(ctx context.Context, staleness time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-staleness)
	cursor, err := r.users.Find(ctx, bson.M{
		"$or": []bson.M{
			{"last_update_reminder": nil},
			{"last_update_reminder": bson.M{"$lt": cutoff}},
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var userIDs []string
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		// Users with nothing tracked never consume reminder traffic.
		count, err := r.products.CountDocuments(ctx, bson.M{"user_id": doc.UserID})
		if err != nil {
			return nil, err
		}
		if count > 0 {
			userIDs = append(userIDs, doc.UserID)
		}
	}
	return userIDs, cursor.Err()
}

func (r *userRepository) GetUsersPastDeadline(ctx context.Context) ([]string, error) {
	cursor, err := r.users.Find(ctx, bson.M{
		"needs_update_response": true,
		"update_deadline":       bson.M{"$ne": nil, "$lt": time.Now()},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var userIDs []string
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, doc.UserID)
	}
	return userIDs, cursor.Err()
}

func (r *userRepository) SetReminder(ctx context.Context, userID string, deadline time.Duration) error {
	now := time.Now()
	_, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"last_update_reminder":  now,
			"update_deadline":       now.Add(deadline),
			"needs_update_response": true,
		}})
	return err
}

func (r *userRepository) ClearReminder(ctx context.Context, userID string) error {
	_, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"needs_update_response": false,
			"update_deadline":       nil,
		}})
	return err
}

func (r *userRepository) DeleteAllUserData(ctx context.Context, userID string) error {
	if _, err := r.history.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete price history: %w", err)
	}
	if _, err := r.products.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}
	return nil
}

type historyDoc struct {
	UserID        string    `bson:"user_id"`
	ProductID     string    `bson:"product_id"`
	Title         string    `bson:"title"`
	OldPrice      float64   `bson:"old_price"`
	NewPrice      float64   `bson:"new_price"`
	ChangeAmount  float64   `bson:"change_amount"`
	ChangePercent float64   `bson:"change_percent"`
	Currency      string    `bson:"currency"`
	Timestamp     time.Time `bson:"timestamp"`
}

type historyRepository struct {
	coll *mongo.Collection
}

func (r *historyRepository) Append(ctx context.Context, record *models.PriceHistory) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := r.coll.InsertOne(ctx, historyDoc{
		UserID:        record.UserID,
		ProductID:     record.ProductID,
		Title:         record.Title,
		OldPrice:      record.OldPrice,
		NewPrice:      record.NewPrice,
		ChangeAmount:  record.ChangeAmount,
		ChangePercent: record.ChangePercent,
		Currency:      record.Currency,
		Timestamp:     record.Timestamp,
	})
	return err
}

func (r *historyRepository) GetByProduct(ctx context.Context, userID, productID string, months int) ([]*models.PriceHistory, error) {
	filter := bson.M{"user_id": userID, "product_id": productID}
	if months > 0 {
		filter["timestamp"] = bson.M{"$gt": time.Now().AddDate(0, -months, 0)}
	}
	return r.find(ctx, filter)
}

func (r *historyRepository) GetAllByUser(ctx context.Context, userID string) ([]*models.PriceHistory, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *historyRepository) find(ctx context.Context, filter bson.M) ([]*models.PriceHistory, error) {
	cursor, err := r.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*models.PriceHistory
	for cursor.Next(ctx) {
		var doc historyDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, &models.PriceHistory{
			UserID:        doc.UserID,
			ProductID:     doc.ProductID,
			Title:         doc.Title,
			OldPrice:      doc.OldPrice,
			NewPrice:      doc.NewPrice,
			ChangeAmount:  doc.ChangeAmount,
			ChangePercent: doc.ChangePercent,
			Currency:      doc.Currency,
			Timestamp:     doc.Timestamp,
		})
	}
	return records, cursor.Err()
}
