package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/metrofound/lostfound-api/config"
	"github.com/metrofound/lostfound-api/databases"
)

// maxPhotoBytes caps item photo uploads at 10MB
const maxPhotoBytes = 10 << 20

// Media handles item photo uploads through Cloudinary
type Media struct {
	ItemDB databases.ItemDatabase
}

// GenerateSignatureHandler returns a signed timestamp so the client can
// upload an item photo straight to Cloudinary without the API secret leaving
// the server
func (m Media) GenerateSignatureHandler(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("upload_preset", uploadPreset)

	signature, err := api.SignParameters(params, apiSecret)
	if err != nil {
		config.ErrorStatus("failed to sign upload parameters", http.StatusInternalServerError, w, err)
		return
	}

	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ItemPhotoUploadHandler uploads the photo server-side and stores the
// resulting URL on the item
func (m Media) ItemPhotoUploadHandler(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	iID, err := primitive.ObjectIDFromHex(itemID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		config.ErrorStatus("failed to parse multipart form", http.StatusBadRequest, w, err)
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		config.ErrorStatus("photo file is required", http.StatusBadRequest, w, err)
		return
	}
	defer file.Close()

	cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
	if err != nil {
		config.ErrorStatus("failed to initialize cloudinary", http.StatusInternalServerError, w, err)
		return
	}

	uploadResp, err := cld.Upload.Upload(r.Context(), file, uploader.UploadParams{
		Folder:   "items",
		PublicID: itemID,
	})
	if err != nil {
		config.ErrorStatus("failed to upload photo", http.StatusInternalServerError, w, err)
		return
	}

	res, err := m.ItemDB.UpdateOne(r.Context(), bson.M{"_id": iID}, bson.M{"$set": bson.M{
		"photoUrl":  uploadResp.SecureURL,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to store photo url", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("item not found", http.StatusNotFound, w, err)
		return
	}

	b, _ := json.Marshal(map[string]string{"photoUrl": uploadResp.SecureURL})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
