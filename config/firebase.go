package config

import (
	"context"
	"encoding/base64"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

var FirebaseApp *firebase.App

// InitFirebase initializes the Firebase Admin SDK used for FCM push
// notifications. Missing credentials disable push but never block startup;
// in-app and email notifications keep working.
func InitFirebase() {
	ctx := context.Background()

	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	fbConfig := &firebase.Config{ProjectID: projectID}

	// Check for base64 encoded credentials first
	if base64Creds := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); base64Creds != "" {
		log.Printf("Using Firebase credentials from base64 environment variable")
		decoded, err := base64.StdEncoding.DecodeString(base64Creds)
		if err != nil {
			log.Printf("Error decoding base64 Firebase credentials: %v", err)
			return
		}

		app, err := firebase.NewApp(ctx, fbConfig, option.WithCredentialsJSON(decoded))
		if err != nil {
			log.Printf("Error initializing firebase app: %v", err)
			return
		}
		FirebaseApp = app
		return
	}

	// Fallback to file-based credentials
	credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	if credFile == "" {
		log.Printf("Firebase credentials not configured; push notifications disabled")
		return
	}

	log.Printf("Using Firebase credentials file: %s", credFile)
	app, err := firebase.NewApp(ctx, fbConfig, option.WithCredentialsFile(credFile))
	if err != nil {
		log.Printf("Error initializing firebase app: %v", err)
		return
	}
	FirebaseApp = app
}
