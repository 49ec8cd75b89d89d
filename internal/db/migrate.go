package db

import (
	"log"

	"wiki-backend/internal/page"
	"wiki-backend/internal/user"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&user.User{},
		&page.Page{},
		&page.PageCollaborator{},
		&page.PageVersion{},
		&page.PageLike{},
	)

	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}

// SeedData seeds the database with initial data (for development only)
func SeedData() {
	userRepo := user.NewRepository(AppDb)

	adminUser := &user.User{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "admin123",
	}

	// Check if the admin user exists
	_, err := userRepo.FindByUsername(adminUser.Username)
	if err != nil {
		userService := user.NewService(userRepo)
		if err := userService.Register(adminUser); err != nil {
			log.Printf("Error creating admin user: %v", err)
			return
		}
		// Register always assigns the user role, promote explicitly
		if err := AppDb.Model(&user.User{}).
			Where("id = ?", adminUser.ID).
			Update("role", user.RoleAdmin).Error; err != nil {
			log.Printf("Error promoting admin user: %v", err)
			return
		}
		log.Printf("Created admin user: %s", adminUser.Username)
	} else {
		log.Printf("Admin user already exists: %s", adminUser.Username)
	}
}
