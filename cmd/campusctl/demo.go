package main

import "github.com/fyrsmithlabs/campusconnect/internal/campus"

var demoUser = campus.User{
	ID:                "u1",
	Name:              "Alex Johnson",
	RollNumber:        "AP21-CS-105",
	Email:             "alex.j@university.edu",
	Interests:         []string{"Basketball", "React Development", "Chess", "Algorithms"},
	Major:             "Computer Science",
	Age:               21,
	ParticipationRate: 88,
	BehaviorScore:     96,
}

var demoActivities = []campus.Activity{
	{
		ID:          "a1",
		Title:       "3v3 Basketball Scrimmage",
		Category:    campus.CategorySports,
		Location:    "Main Gym Court 2",
		Time:        "Today, 5:00 PM",
		SlotsTotal:  6,
		SlotsTaken:  4,
		CreatorID:   "u2",
		CreatorName: "Jordan Smith",
		SkillLevel:  "Intermediate",
		Description: "Looking for 2 more players for a friendly half-court session.",
		Status:      campus.StatusOpen,
	},
	{
		ID:          "a2",
		Title:       "CS101 Final Review",
		Category:    campus.CategoryStudy,
		Location:    "Central Library, Floor 3",
		Time:        "Tomorrow, 2:00 PM",
		SlotsTotal:  5,
		SlotsTaken:  2,
		CreatorID:   "u3",
		CreatorName: "Sarah Chen",
		Description: "Going over binary trees and recursion. Bring coffee!",
		Status:      campus.StatusOpen,
	},
	{
		ID:          "a3",
		Title:       "E-Sports Club: Valorant",
		Category:    campus.CategoryGaming,
		Location:    "Student Union Room 402",
		Time:        "Friday, 8:00 PM",
		SlotsTotal:  10,
		SlotsTaken:  7,
		CreatorID:   "u4",
		CreatorName: "Mike Ross",
		SkillLevel:  "Any",
		Description: "Casual LAN party and ladder climb. All ranks welcome!",
		Status:      campus.StatusOpen,
	},
}
